package dynmsg

import (
	"sort"
	"sync"

	"github.com/ghetolay/WowBot/internal/metrics"
)

// Tracker is the set of attached entities.
type Tracker struct {
	metrics *metrics.Metrics

	mu       sync.RWMutex
	entities map[*Entity]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker(m *metrics.Metrics) *Tracker {
	return &Tracker{metrics: m, entities: make(map[*Entity]struct{})}
}

func (t *Tracker) add(e *Entity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entities[e]; ok {
		return
	}
	t.entities[e] = struct{}{}
	t.metrics.EntityTracked(e.TypeID(), 1)
}

func (t *Tracker) remove(e *Entity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entities[e]; !ok {
		return
	}
	delete(t.entities, e)
	t.metrics.EntityTracked(e.TypeID(), -1)
}

// Len returns the number of tracked entities.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entities)
}

// List returns the tracked entities ordered by type then id.
func (t *Tracker) List() []*Entity {
	t.mu.RLock()
	out := make([]*Entity, 0, len(t.entities))
	for e := range t.entities {
		out = append(out, e)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].TypeID() != out[j].TypeID() {
			return out[i].TypeID() < out[j].TypeID()
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

// Get returns the tracked entity with id, if any.
func (t *Tracker) Get(id string) (*Entity, bool) {
	for _, e := range t.List() {
		if e.ID() == id {
			return e, true
		}
	}
	return nil, false
}
