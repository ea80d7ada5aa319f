package dynmsg

import (
	"context"
	"sort"
	"time"

	"github.com/ghetolay/WowBot/internal/chat"
	"github.com/ghetolay/WowBot/internal/logger"
	"github.com/ghetolay/WowBot/internal/urlcodec"
)

// Snapshot is the mirrored location of an entity. The message link stays
// the source of truth; a snapshot only says where to look.
type Snapshot struct {
	TypeID     string    `json:"type_id"`
	ID         string    `json:"id"`
	ChannelID  string    `json:"channel_id"`
	MessageIDs []string  `json:"message_ids"`
	Link       string    `json:"link"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Repository persists and recovers entities.
type Repository interface {
	Load(ctx context.Context, q Query) ([]Found, error)
	Save(ctx context.Context, s Snapshot) error
	Delete(ctx context.Context, typeID, id string) error
}

// HistoryRepository recovers entities from channel history only.
type HistoryRepository struct {
	Scanner *Scanner
}

// Load implements Repository.
func (r *HistoryRepository) Load(ctx context.Context, q Query) ([]Found, error) {
	return r.Scanner.FindExisting(ctx, q)
}

// Save implements Repository. History is already up to date after a render.
func (r *HistoryRepository) Save(context.Context, Snapshot) error { return nil }

// Delete implements Repository.
func (r *HistoryRepository) Delete(context.Context, string, string) error { return nil }

// ResolveSnapshots fetches the messages named by snaps and keeps those that
// still carry a matching link. Snapshots whose message is gone are passed to
// gone. Results are ordered newest first.
func ResolveSnapshots(ctx context.Context, s *Scanner, snaps []Snapshot, q Query, gone func(Snapshot)) []Found {
	var found []Found
	for _, snap := range snaps {
		if len(snap.MessageIDs) == 0 {
			gone(snap)
			continue
		}
		msgs := make([]*chat.Message, 0, len(snap.MessageIDs))
		missing := false
		for _, id := range snap.MessageIDs {
			m, err := s.Reader.Message(ctx, snap.ChannelID, id)
			if err != nil {
				logger.Debugf("[dynmsg] snapshot %s %s: message %s: %v", snap.TypeID, snap.ID, id, err)
				missing = true
				break
			}
			msgs = append(msgs, m)
		}
		if missing && len(msgs) == 0 {
			gone(snap)
			continue
		}

		head := msgs[0]
		id, typeID, ok := urlcodec.Match(head.FirstEmbed().AuthorURL())
		if !ok || head.Author.ID != s.Self.ID {
			gone(snap)
			continue
		}
		if q.Match != nil && !q.Match(typeID, id, head) {
			continue
		}
		f, err := decodeFound(head)
		if err != nil {
			logger.Errorf("[dynmsg] decode %s: %v", head.ID, err)
			continue
		}
		if !missing {
			f.Messages = msgs
		}
		found = append(found, *f)
	}

	sortFoundNewestFirst(found)
	return found
}

func sortFoundNewestFirst(found []Found) {
	sort.SliceStable(found, func(i, j int) bool {
		return chat.CompareIDs(found[i].Messages[0].ID, found[j].Messages[0].ID) > 0
	})
}
