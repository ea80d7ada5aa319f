// Package pebble mirrors entity locations in a pebble key value store.
package pebble

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"

	"github.com/ghetolay/WowBot/internal/dynmsg"
	"github.com/ghetolay/WowBot/internal/logger"
)

const prefix = "snap:"

// Store implements dynmsg.Repository. Keys are snap:<type>:<id> and values
// the JSON encoded snapshot.
type Store struct {
	db      *pebble.DB
	scanner *dynmsg.Scanner
}

// Open opens or creates the store at path.
func Open(path string, scanner *dynmsg.Scanner) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &Store{db: db, scanner: scanner}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func key(typeID, id string) []byte {
	return []byte(prefix + typeID + ":" + id)
}

// Save implements dynmsg.Repository.
func (s *Store) Save(_ context.Context, snap dynmsg.Snapshot) error {
	v, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s %s: %w", snap.TypeID, snap.ID, err)
	}
	if err := s.db.Set(key(snap.TypeID, snap.ID), v, pebble.Sync); err != nil {
		return fmt.Errorf("save snapshot %s %s: %w", snap.TypeID, snap.ID, err)
	}
	return nil
}

// Delete implements dynmsg.Repository.
func (s *Store) Delete(_ context.Context, typeID, id string) error {
	if err := s.db.Delete(key(typeID, id), pebble.Sync); err != nil {
		return fmt.Errorf("delete snapshot %s %s: %w", typeID, id, err)
	}
	return nil
}

// Get returns one snapshot.
func (s *Store) Get(typeID, id string) (dynmsg.Snapshot, bool, error) {
	v, closer, err := s.db.Get(key(typeID, id))
	if errors.Is(err, pebble.ErrNotFound) {
		return dynmsg.Snapshot{}, false, nil
	}
	if err != nil {
		return dynmsg.Snapshot{}, false, fmt.Errorf("get snapshot %s %s: %w", typeID, id, err)
	}
	defer closer.Close()

	var snap dynmsg.Snapshot
	if err := json.Unmarshal(v, &snap); err != nil {
		return dynmsg.Snapshot{}, false, fmt.Errorf("decode snapshot %s %s: %w", typeID, id, err)
	}
	return snap, true, nil
}

// Snapshots returns the snapshots of a channel.
func (s *Store) Snapshots(channelID string) ([]dynmsg.Snapshot, error) {
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: []byte("snap;"),
	})
	if err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	defer it.Close()

	var snaps []dynmsg.Snapshot
	for ok := it.First(); ok; ok = it.Next() {
		var snap dynmsg.Snapshot
		if err := json.Unmarshal(it.Value(), &snap); err != nil {
			logger.Warnf("[pebble] skip %s: %v", it.Key(), err)
			continue
		}
		if snap.ChannelID == channelID {
			snaps = append(snaps, snap)
		}
	}
	return snaps, it.Error()
}

// Load implements dynmsg.Repository. A channel without snapshots is scanned
// from history.
func (s *Store) Load(ctx context.Context, q dynmsg.Query) ([]dynmsg.Found, error) {
	snaps, err := s.Snapshots(q.ChannelID)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		logger.Debugf("[pebble] no snapshot for %s, scanning history", q.ChannelID)
		return s.scanner.FindExisting(ctx, q)
	}
	return dynmsg.ResolveSnapshots(ctx, s.scanner, snaps, q, func(snap dynmsg.Snapshot) {
		logger.Infof("[pebble] %s %s is gone, dropping snapshot", snap.TypeID, snap.ID)
		if err := s.Delete(ctx, snap.TypeID, snap.ID); err != nil {
			logger.Warnf("[pebble] %v", err)
		}
	}), nil
}

var _ dynmsg.Repository = (*Store)(nil)
