// Package roster implements the guild roster: a dynamic message listing
// every player with their main and off specializations, edited through spec
// emoji reactions.
package roster

import (
	"context"
	"fmt"
	"sync"

	"github.com/ghetolay/WowBot/internal/chat"
	"github.com/ghetolay/WowBot/internal/dynmsg"
	"github.com/ghetolay/WowBot/internal/logger"
	"github.com/ghetolay/WowBot/internal/urlcodec"
	"github.com/ghetolay/WowBot/internal/wow"
)

// TypeID tags roster links.
const TypeID = "rt"

// Placeholders is the number of extra messages hosting spec reactions.
const Placeholders = 1

const defaultFlag = "default"

// Roster is a roster entity.
type Roster struct {
	entity   *dynmsg.Entity
	client   chat.Directory
	emojis   *wow.Emojis
	registry *Registry

	mu        sync.Mutex
	title     string
	data      *Data
	isDefault bool
}

// Env groups what rosters are built with.
type Env struct {
	Deps     dynmsg.Deps
	Emojis   *wow.Emojis
	Registry *Registry
}

func newRoster(env Env, channelID string, msgs []*chat.Message, title string, data *Data, isDefault bool, opts ...dynmsg.Option) *Roster {
	r := &Roster{
		client:    env.Deps.Client,
		emojis:    env.Emojis,
		registry:  env.Registry,
		title:     title,
		data:      data,
		isDefault: isDefault,
	}
	opts = append(opts, dynmsg.OnDestroy(func() { env.Registry.Remove(r.ID()) }))
	r.entity = dynmsg.New(env.Deps, r, channelID, msgs, opts...)
	env.Registry.Set(r.ID(), r, isDefault)
	return r
}

// Create posts a new roster in channelID.
func Create(ctx context.Context, env Env, channelID, title string, isDefault bool) (*Roster, error) {
	msgs, err := dynmsg.Post(ctx, env.Deps.Client, channelID, Placeholders)
	if err != nil {
		return nil, err
	}
	r := newRoster(env, channelID, msgs, title, NewData(), isDefault)
	if isDefault {
		for _, other := range env.Registry.List() {
			if o, ok := other.(*Roster); ok && o != r && o.MarkDefault(false) {
				o.entity.Refresh()
			}
		}
	}
	if err := r.init(ctx); err != nil {
		return r, err
	}
	return r, nil
}

// DefaultStop ends a roster scan at the first page holding a roster.
func DefaultStop(lastMatch, _ *chat.Message) bool { return lastMatch != nil }

// Load recovers the rosters of channelID. stop defaults to DefaultStop.
func Load(ctx context.Context, env Env, channelID string, stop dynmsg.StopFunc) ([]*Roster, error) {
	if stop == nil {
		stop = DefaultStop
	}
	found, err := env.Deps.Repo.Load(ctx, dynmsg.Query{
		ChannelID: channelID,
		Match:     func(typeID, _ string, _ *chat.Message) bool { return typeID == TypeID },
		Stop:      stop,
		Extra:     Placeholders,
	})
	if err != nil {
		return nil, fmt.Errorf("scan rosters: %w", err)
	}

	var out []*Roster
	for _, f := range found {
		title, data, isDefault, err := Decode(f.Path, f.Params)
		if err != nil {
			logger.Errorf("[roster] load %s: %v", f.ID, err)
			if err := dynmsg.MarkFailed(ctx, env.Deps.Client, f.Messages[0], fmt.Errorf("error loading roster message: %w", err)); err != nil {
				logger.Warnf("[roster] mark %s: %v", f.ID, err)
			}
			continue
		}
		if !f.Complete(Placeholders) {
			logger.Warnf("[roster] %s: placeholder message missing; reactions limited to the embed message", f.ID)
		}
		r := newRoster(env, channelID, f.Messages, title, data, isDefault)
		if err := r.init(ctx); err != nil {
			logger.Errorf("[roster] init %s: %v", r.ID(), err)
		}
		logger.Infof("[roster] loaded %q (%s)", title, r.ID())
		out = append(out, r)
	}
	return out, nil
}

// Decode rebuilds a roster from its link data.
func Decode(path []string, params urlcodec.Params) (title string, data *Data, isDefault bool, err error) {
	if len(path) > 0 {
		title = path[0]
	}
	isDefault = len(path) > 1 && path[1] == defaultFlag
	data = NewData()
	for _, p := range params {
		for _, raw := range p.Values {
			id := wow.SpecID(raw)
			if _, ok := wow.Lookup(id); !ok {
				return "", nil, false, fmt.Errorf("unknown spec %q", raw)
			}
			data.AddSpec(p.Key, id)
		}
	}
	return title, data, isDefault, nil
}

func (r *Roster) init(ctx context.Context) error {
	r.entity.Refresh()

	var actions []dynmsg.Action
	for _, spec := range wow.RosterSpecs() {
		emoji, ok := r.emojis.Spec(spec)
		if !ok {
			logger.Warnf("[roster] missing emoji %s for spec %s", spec.EmojiName, spec.ID)
			continue
		}
		spec := spec
		actions = append(actions, dynmsg.Toggle(emoji, func(_ context.Context, ev chat.ReactionEvent) bool {
			if ev.Removed {
				return r.RemoveSpec(ev.User.ID, spec.ID)
			}
			return r.AddSpec(ev.User.ID, spec.ID)
		}))
	}
	return r.entity.SetupReactions(ctx, actions)
}

// Entity returns the underlying entity.
func (r *Roster) Entity() *dynmsg.Entity { return r.entity }

// TypeID implements dynmsg.Model.
func (r *Roster) TypeID() string { return TypeID }

// ID implements Lookup.
func (r *Roster) ID() string { return r.entity.ID() }

// Name implements Lookup.
func (r *Roster) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.title
}

// Link implements Lookup.
func (r *Roster) Link() string { return r.entity.Ref().Link() }

// MainSpec implements Lookup.
func (r *Roster) MainSpec(userID string) (wow.SpecID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.data.Specs(userID)
	if p == nil || p.Main == "" {
		return "", false
	}
	return p.Main, true
}

// OffSpecs implements Lookup.
func (r *Roster) OffSpecs(userID string) []wow.SpecID {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.data.Specs(userID)
	if p == nil {
		return nil
	}
	return append([]wow.SpecID(nil), p.Off...)
}

// AddSpec adds spec to userID.
func (r *Roster) AddSpec(userID string, spec wow.SpecID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data.AddSpec(userID, spec)
}

// RemoveSpec removes spec from userID.
func (r *Roster) RemoveSpec(userID string, spec wow.SpecID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data.RemoveSpec(userID, spec)
}

// SetMainSpec makes spec the main of userID.
func (r *Roster) SetMainSpec(userID string, spec wow.SpecID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data.SetMainSpec(userID, spec)
}

// MarkDefault records whether this roster is the default one.
func (r *Roster) MarkDefault(isDefault bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isDefault == isDefault {
		return false
	}
	r.isDefault = isDefault
	return true
}

// Encode implements dynmsg.Model.
func (r *Roster) Encode() ([]string, urlcodec.Params) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := []string{r.title}
	if r.isDefault {
		path = append(path, defaultFlag)
	}
	var params urlcodec.Params
	for _, id := range r.data.Players() {
		p := r.data.Specs(id)
		if p.Main == "" {
			continue
		}
		values := []string{string(p.Main)}
		for _, s := range p.Off {
			values = append(values, string(s))
		}
		params.Add(id, values...)
	}
	return path, params
}

// Generate implements dynmsg.Model.
func (r *Roster) Generate(ctx context.Context) (*chat.Embed, error) {
	r.mu.Lock()
	title := r.title
	type entry struct {
		id   string
		main wow.SpecID
		off  []wow.SpecID
	}
	var entries []entry
	for _, id := range r.data.Players() {
		p := r.data.Specs(id)
		entries = append(entries, entry{id: id, main: p.Main, off: append([]wow.SpecID(nil), p.Off...)})
	}
	r.mu.Unlock()

	var mains, offs [4][]string
	guildID := r.entity.GuildID()
	for _, e := range entries {
		if e.main == "" {
			continue
		}
		member, err := r.client.Member(ctx, guildID, e.id)
		if err != nil {
			logger.Warnf("[roster] %s: missing member %s: %v", r.ID(), e.id, err)
			continue
		}
		main, _ := wow.Lookup(e.main)
		mains[main.Role] = append(mains[main.Role], r.emojis.SpecText(main)+member.Mention())
		for _, id := range e.off {
			spec, _ := wow.Lookup(id)
			offs[spec.Role] = append(offs[spec.Role], r.emojis.SpecText(spec)+" "+member.DisplayName())
		}
	}

	total := 0
	for _, l := range mains {
		total += len(l)
	}

	embed := &chat.Embed{Title: title}
	embed.AddField(fmt.Sprintf("Total: %d", total), chat.Blank, false)

	dynmsg.Add3ColumnFields(embed, fmt.Sprintf("__TANKS:__  (%d)", len(mains[wow.RoleTank])), mains[wow.RoleTank])
	dynmsg.Add3ColumnFields(embed, "", offs[wow.RoleTank])

	dynmsg.Add3ColumnFields(embed, fmt.Sprintf("__HEALS:__  (%d)", len(mains[wow.RoleHeal])), mains[wow.RoleHeal])
	dynmsg.Add3ColumnFields(embed, "", offs[wow.RoleHeal])

	melee, ranged := len(mains[wow.RoleMelee]), len(mains[wow.RoleRanged])
	dynmsg.Add3ColumnFields(embed, fmt.Sprintf("__DPS:__  (%d) *(m:%d,r:%d)*", melee+ranged, melee, ranged),
		mains[wow.RoleMelee], mains[wow.RoleRanged])
	dynmsg.Add3ColumnFields(embed, "", append(offs[wow.RoleMelee], offs[wow.RoleRanged]...))

	return embed, nil
}
