package dynmsg

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ghetolay/WowBot/internal/chat"
	"github.com/ghetolay/WowBot/internal/logger"
	"github.com/ghetolay/WowBot/internal/metrics"
	"github.com/ghetolay/WowBot/internal/urlcodec"
)

// DefaultPageSize is the number of messages fetched per history page.
const DefaultPageSize = 5

// MatchFunc selects candidate messages by type id and id.
type MatchFunc func(typeID, id string, msg *chat.Message) bool

// StopFunc ends a history scan. lastMatch is the last match of the page
// just processed (nil when none), last is the oldest message seen.
type StopFunc func(lastMatch, last *chat.Message) bool

// Query describes a recovery scan.
type Query struct {
	ChannelID string
	Match     MatchFunc
	Stop      StopFunc
	// Extra is the number of placeholder messages following each match.
	Extra    int
	PageSize int
	// Latest is the newest message the caller already holds, if any. It is
	// handed to Stop before any page is fetched.
	Latest *chat.Message
}

// Found is a recovered entity.
type Found struct {
	// Messages holds the embed message followed by its placeholders.
	Messages []*chat.Message
	ID       string
	TypeID   string
	Path     []string
	Params   urlcodec.Params
}

// Complete reports whether every expected placeholder was recovered.
func (f Found) Complete(extra int) bool { return len(f.Messages) == extra+1 }

// Scanner walks channel history looking for entities.
type Scanner struct {
	Reader  chat.MessageReader
	Writer  chat.MessageWriter
	Self    chat.User
	Metrics *metrics.Metrics
	// PageSize applies to queries that set none.
	PageSize int
}

// FindExisting scans history newest first and returns every match.
//
// Stop is evaluated once with (nil, q.Latest) before the first page is
// fetched, then after each page.
func (s *Scanner) FindExisting(ctx context.Context, q Query) ([]Found, error) {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = s.PageSize
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	if q.Stop != nil && q.Stop(nil, q.Latest) {
		return nil, nil
	}

	var (
		found  []Found
		before string
	)
	for {
		page, err := s.Reader.Messages(ctx, q.ChannelID, pageSize, before, "")
		if err != nil {
			return found, fmt.Errorf("fetch history of %s: %w", q.ChannelID, err)
		}
		s.Metrics.HistoryPage()
		if len(page) == 0 {
			return found, nil
		}
		chat.SortNewestFirst(page)

		var matches []*chat.Message
		for _, msg := range page {
			if msg.Author.ID != s.Self.ID {
				continue
			}
			id, typeID, ok := urlcodec.Match(msg.FirstEmbed().AuthorURL())
			if !ok {
				continue
			}
			if q.Match != nil && !q.Match(typeID, id, msg) {
				continue
			}
			matches = append(matches, msg)
		}

		results := make([]*Found, len(matches))
		g, gctx := errgroup.WithContext(ctx)
		for i, msg := range matches {
			g.Go(func() error {
				results[i] = s.resolve(gctx, msg, q.Extra)
				return nil
			})
		}
		_ = g.Wait()
		for _, r := range results {
			if r != nil {
				found = append(found, *r)
			}
		}

		var lastMatch *chat.Message
		if len(matches) > 0 {
			lastMatch = matches[len(matches)-1]
		}
		oldest := page[len(page)-1]
		if q.Stop != nil && q.Stop(lastMatch, oldest) {
			return found, nil
		}
		if len(page) < pageSize {
			return found, nil
		}
		before = oldest.ID
	}
}

// resolve decodes msg and collects its placeholders. It returns nil when the
// link cannot be decoded.
func (s *Scanner) resolve(ctx context.Context, msg *chat.Message, extra int) *Found {
	f, err := decodeFound(msg)
	if err != nil {
		logger.Errorf("[dynmsg] decode %s: %v", msg.ID, err)
		if s.Writer != nil {
			if err := MarkFailed(ctx, s.Writer, msg, err); err != nil {
				logger.Warnf("[dynmsg] mark %s failed: %v", msg.ID, err)
			}
		}
		return nil
	}
	if extra <= 0 {
		return f
	}

	next, err := s.Reader.Messages(ctx, msg.ChannelID, extra, "", msg.ID)
	if err != nil {
		logger.Errorf("[dynmsg] %s %s: fetch placeholders: %v", f.TypeID, f.ID, err)
		return f
	}
	chat.SortOldestFirst(next)
	if len(next) < extra {
		logger.Errorf("[dynmsg] %s %s: expected %d placeholder messages, found %d", f.TypeID, f.ID, extra, len(next))
		return f
	}
	next = next[:extra]
	for _, m := range next {
		if m.Author.ID != s.Self.ID || !m.IsPlaceholder() {
			logger.Errorf("[dynmsg] %s %s: message %s is not a placeholder", f.TypeID, f.ID, m.ID)
			return f
		}
	}
	f.Messages = append(f.Messages, next...)
	return f
}

func decodeFound(msg *chat.Message) (*Found, error) {
	data, err := urlcodec.Decode(msg.FirstEmbed().AuthorURL())
	if err != nil {
		return nil, err
	}
	id, typeID, _, ok := urlcodec.SplitHost(data.ID)
	if !ok {
		return nil, fmt.Errorf("%w: host %q", urlcodec.ErrMalformed, data.ID)
	}
	return &Found{
		Messages: []*chat.Message{msg},
		ID:       id,
		TypeID:   typeID,
		Path:     data.Path,
		Params:   data.Params,
	}, nil
}

// Get returns path[i] or "".
func (f Found) Get(i int) string {
	if i < len(f.Path) {
		return f.Path[i]
	}
	return ""
}
