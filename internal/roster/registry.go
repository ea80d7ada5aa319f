package roster

import (
	"sort"
	"sync"

	"github.com/ghetolay/WowBot/internal/wow"
)

// Lookup is the read side of a roster, as used by events.
type Lookup interface {
	ID() string
	Name() string
	Link() string
	MainSpec(userID string) (wow.SpecID, bool)
	OffSpecs(userID string) []wow.SpecID
}

// Registry indexes the rosters of a guild by id and name.
type Registry struct {
	mu        sync.RWMutex
	rosters   map[string]Lookup
	defaultID string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rosters: make(map[string]Lookup)}
}

// Set stores r under id, overriding any previous entry. The first roster
// stored becomes the default.
func (reg *Registry) Set(id string, r Lookup, isDefault bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.rosters[id] = r
	if isDefault || len(reg.rosters) == 1 {
		reg.defaultID = id
	}
}

// Remove drops the roster with id.
func (reg *Registry) Remove(id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rosters, id)
	if reg.defaultID == id {
		reg.defaultID = ""
	}
}

// SetDefault makes the roster with id or name the default.
func (reg *Registry) SetDefault(idOrName string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.rosters[idOrName]; ok {
		reg.defaultID = idOrName
		return true
	}
	for id, r := range reg.rosters {
		if r.Name() == idOrName {
			reg.defaultID = id
			return true
		}
	}
	return false
}

// Default returns the default roster.
func (reg *Registry) Default() (Lookup, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rosters[reg.defaultID]
	return r, ok
}

// DefaultID returns the id of the default roster or "".
func (reg *Registry) DefaultID() string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.defaultID
}

// Get returns the roster with id, or else the one named idOrName.
func (reg *Registry) Get(idOrName string) (Lookup, bool) {
	if r, ok := reg.ByID(idOrName); ok {
		return r, true
	}
	return reg.ByName(idOrName)
}

// ByID returns the roster with id.
func (reg *Registry) ByID(id string) (Lookup, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rosters[id]
	return r, ok
}

// ByName returns the roster called name.
func (reg *Registry) ByName(name string) (Lookup, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	for _, r := range reg.rosters {
		if r.Name() == name {
			return r, true
		}
	}
	return nil, false
}

// List returns every roster sorted by name.
func (reg *Registry) List() []Lookup {
	reg.mu.RLock()
	out := make([]Lookup, 0, len(reg.rosters))
	for _, r := range reg.rosters {
		out = append(out, r)
	}
	reg.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
