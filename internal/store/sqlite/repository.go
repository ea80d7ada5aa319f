package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ghetolay/WowBot/internal/dynmsg"
	"github.com/ghetolay/WowBot/internal/logger"
)

// Repository implements dynmsg.Repository on top of DB. Rows only say where
// an entity lives; the message is fetched and decoded again on Load.
type Repository struct {
	db      *DB
	scanner *dynmsg.Scanner
}

// NewRepository creates a repository resolving snapshots with scanner. A
// channel without rows is scanned from history instead.
func NewRepository(db *DB, scanner *dynmsg.Scanner) *Repository {
	return &Repository{db: db, scanner: scanner}
}

// Save implements dynmsg.Repository.
func (r *Repository) Save(ctx context.Context, s dynmsg.Snapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO entity_snapshots (type_id, entity_id, channel_id, message_ids, link, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(type_id, entity_id) DO UPDATE SET
			channel_id = excluded.channel_id,
			message_ids = excluded.message_ids,
			link = excluded.link,
			updated_at = excluded.updated_at
	`, s.TypeID, s.ID, s.ChannelID, strings.Join(s.MessageIDs, ","), s.Link, s.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save snapshot %s %s: %w", s.TypeID, s.ID, err)
	}
	return nil
}

// Delete implements dynmsg.Repository.
func (r *Repository) Delete(ctx context.Context, typeID, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM entity_snapshots WHERE type_id = ? AND entity_id = ?`, typeID, id)
	if err != nil {
		return fmt.Errorf("delete snapshot %s %s: %w", typeID, id, err)
	}
	return nil
}

// Snapshots returns the rows of a channel.
func (r *Repository) Snapshots(ctx context.Context, channelID string) ([]dynmsg.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT type_id, entity_id, channel_id, message_ids, link, updated_at
		FROM entity_snapshots WHERE channel_id = ?
	`, channelID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots of %s: %w", channelID, err)
	}
	defer rows.Close()

	var snaps []dynmsg.Snapshot
	for rows.Next() {
		var (
			s   dynmsg.Snapshot
			ids string
			at  time.Time
		)
		if err := rows.Scan(&s.TypeID, &s.ID, &s.ChannelID, &ids, &s.Link, &at); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if ids != "" {
			s.MessageIDs = strings.Split(ids, ",")
		}
		s.UpdatedAt = at
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

// Load implements dynmsg.Repository.
func (r *Repository) Load(ctx context.Context, q dynmsg.Query) ([]dynmsg.Found, error) {
	snaps, err := r.Snapshots(ctx, q.ChannelID)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		logger.Debugf("[sqlite] no snapshot for %s, scanning history", q.ChannelID)
		return r.scanner.FindExisting(ctx, q)
	}
	return dynmsg.ResolveSnapshots(ctx, r.scanner, snaps, q, func(s dynmsg.Snapshot) {
		logger.Infof("[sqlite] %s %s is gone, dropping snapshot", s.TypeID, s.ID)
		if err := r.Delete(ctx, s.TypeID, s.ID); err != nil {
			logger.Warnf("[sqlite] %v", err)
		}
	}), nil
}

var _ dynmsg.Repository = (*Repository)(nil)
