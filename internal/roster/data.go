package roster

import (
	"github.com/ghetolay/WowBot/internal/wow"
)

// PlayerSpecs holds the specializations of one player. Main is empty when
// the player only has off-specs, which is transient: AddSpec always fills
// Main first.
type PlayerSpecs struct {
	Main wow.SpecID
	Off  []wow.SpecID
}

// Has reports whether spec is the main or an off-spec.
func (p *PlayerSpecs) Has(spec wow.SpecID) bool {
	if p.Main == spec {
		return true
	}
	for _, s := range p.Off {
		if s == spec {
			return true
		}
	}
	return false
}

// Data maps players to their specs, keeping insertion order.
type Data struct {
	order   []string
	players map[string]*PlayerSpecs
}

// NewData creates an empty roster.
func NewData() *Data {
	return &Data{players: make(map[string]*PlayerSpecs)}
}

// Players returns player ids in insertion order.
func (d *Data) Players() []string {
	return append([]string(nil), d.order...)
}

// Specs returns the specs of userID or nil.
func (d *Data) Specs(userID string) *PlayerSpecs {
	return d.players[userID]
}

// HasSpec reports whether userID has spec.
func (d *Data) HasSpec(userID string, spec wow.SpecID) bool {
	p := d.players[userID]
	return p != nil && p.Has(spec)
}

// SetMainSpec makes spec the main of userID. The previous main becomes an
// off-spec.
func (d *Data) SetMainSpec(userID string, spec wow.SpecID) bool {
	p := d.ensure(userID)
	if p.Main == spec {
		return false
	}
	off := p.Off[:0:0]
	for _, s := range p.Off {
		if s != spec {
			off = append(off, s)
		}
	}
	if p.Main != "" {
		off = append(off, p.Main)
	}
	p.Off = off
	p.Main = spec
	return true
}

// AddSpec adds spec to userID: as main when none is set, otherwise as an
// off-spec. It returns false when userID already has spec.
func (d *Data) AddSpec(userID string, spec wow.SpecID) bool {
	if d.HasSpec(userID, spec) {
		return false
	}
	p := d.ensure(userID)
	if p.Main == "" {
		p.Main = spec
	} else {
		p.Off = append(p.Off, spec)
	}
	return true
}

// RemoveSpec removes spec from userID. Removing the main promotes the first
// off-spec.
func (d *Data) RemoveSpec(userID string, spec wow.SpecID) bool {
	p := d.players[userID]
	if p == nil || !p.Has(spec) {
		return false
	}
	if p.Main == spec {
		p.Main = ""
		if len(p.Off) > 0 {
			p.Main = p.Off[0]
			p.Off = p.Off[1:]
		}
	} else {
		off := p.Off[:0:0]
		for _, s := range p.Off {
			if s != spec {
				off = append(off, s)
			}
		}
		p.Off = off
	}
	if p.Main == "" && len(p.Off) == 0 {
		d.remove(userID)
	}
	return true
}

func (d *Data) ensure(userID string) *PlayerSpecs {
	p := d.players[userID]
	if p == nil {
		p = &PlayerSpecs{}
		d.players[userID] = p
		d.order = append(d.order, userID)
	}
	return p
}

func (d *Data) remove(userID string) {
	delete(d.players, userID)
	for i, id := range d.order {
		if id == userID {
			d.order = append(d.order[:i:i], d.order[i+1:]...)
			return
		}
	}
}
