// Package events implements calendar events: dynamic messages where players
// sign up against a roster, configured through reactions and DM sessions,
// and closed automatically once they started.
package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ghetolay/WowBot/internal/chat"
	"github.com/ghetolay/WowBot/internal/dmsession"
	"github.com/ghetolay/WowBot/internal/dynmsg"
	"github.com/ghetolay/WowBot/internal/logger"
	"github.com/ghetolay/WowBot/internal/roster"
	"github.com/ghetolay/WowBot/internal/urlcodec"
	"github.com/ghetolay/WowBot/internal/wow"
)

// TypeID tags event links.
const TypeID = "ev"

// ErrNoMainSpec is returned when signing up a player without a main spec in
// the event roster.
var ErrNoMainSpec = errors.New("events: player has no main spec in the roster")

// NoSpecMessage is sent to players signing up without a roster spec.
const NoSpecMessage = "You must pick a spec in the roster before signing up for an event."

var (
	EmojiPresent   = chat.Unicode("👍")
	EmojiAbsent    = chat.Unicode("👎")
	EmojiLate      = chat.Unicode("⏲")
	EmojiBench     = chat.Unicode("🛋")
	EmojiConfigure = chat.Unicode("🛠️")
)

const closeTimeout = 30 * time.Second

// Env groups what events of a guild are built with.
type Env struct {
	Deps     dynmsg.Deps
	Emojis   *wow.Emojis
	Rosters  *roster.Registry
	Calendar *Calendar
	Sessions *dmsession.Runner
	Options  Options
}

// Event is a calendar event entity.
type Event struct {
	entity *dynmsg.Entity
	env    Env

	mu         sync.Mutex
	date       time.Time
	rosterID   string
	setup      Setup
	desc       string
	icon       string
	lineup     *Lineup
	closeTimer *time.Timer
	closed     bool
}

// Data is the decoded state of an event link.
type Data struct {
	Date     time.Time
	RosterID string
	Setup    Setup
	Desc     string
	Status   dynmsg.Status
	Icon     string
	Lineup   *Lineup
}

func newEvent(env Env, channelID string, msgs []*chat.Message, d Data) *Event {
	env.Options = env.Options.withDefaults()
	if d.Lineup == nil {
		d.Lineup = NewLineup()
	}
	e := &Event{
		env:      env,
		date:     d.Date,
		rosterID: d.RosterID,
		setup:    d.Setup,
		desc:     d.Desc,
		icon:     d.Icon,
		lineup:   d.Lineup,
	}
	opts := []dynmsg.Option{dynmsg.OnDestroy(e.destroyed)}
	if d.Status == dynmsg.StatusValidated || d.Status == dynmsg.StatusClose {
		opts = append(opts, dynmsg.WithStatus(d.Status))
	}
	e.entity = dynmsg.New(env.Deps, e, channelID, msgs, opts...)
	if _, ok := env.Rosters.ByID(d.RosterID); !ok {
		e.entity.Fail(fmt.Errorf("can't find roster %s", d.RosterID))
	}
	env.Calendar.add(e)
	e.scheduleClose()
	return e
}

// Create posts a new event in channelID.
func Create(ctx context.Context, env Env, channelID string, d Data) (*Event, error) {
	opts := env.Options.withDefaults()
	if d.Setup.Total() == 0 {
		d.Setup = opts.Setup
	}
	if d.Icon == "" {
		d.Icon = opts.Icons[0]
	}
	msgs, err := dynmsg.Post(ctx, env.Deps.Client, channelID, 0)
	if err != nil {
		return nil, err
	}
	e := newEvent(env, channelID, msgs, d)
	if err := e.init(ctx); err != nil {
		return e, err
	}
	logger.Infof("[event] created %s for %s", e.ID(), FormatDate(e.Date()))
	return e, nil
}

// Load recovers the upcoming events of channelID. The scan ends at the
// first event already in the past.
func Load(ctx context.Context, env Env, channelID string) ([]*Event, error) {
	now := env.Options.withDefaults().now()
	outdated := false

	found, err := env.Deps.Repo.Load(ctx, dynmsg.Query{
		ChannelID: channelID,
		Match: func(typeID, id string, _ *chat.Message) bool {
			if typeID != TypeID {
				return false
			}
			date, ok := parseID(id)
			if !ok {
				return false
			}
			if date.Before(now) {
				outdated = true
				return false
			}
			return true
		},
		Stop: func(_, _ *chat.Message) bool { return outdated },
	})
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}

	var out []*Event
	for _, f := range found {
		date, _ := parseID(f.ID)
		d := Decode(date, f.Path, f.Params)
		e := newEvent(env, channelID, f.Messages, d)
		if err := e.init(ctx); err != nil {
			logger.Errorf("[event] init %s: %v", e.ID(), err)
		}
		out = append(out, e)
	}
	logger.Infof("[event] loaded %d events from %s", len(out), channelID)
	return out, nil
}

// Decode rebuilds event data from its link.
func Decode(date time.Time, path []string, params urlcodec.Params) Data {
	at := func(i int) string {
		if i < len(path) {
			return path[i]
		}
		return ""
	}
	status, ok := dynmsg.ParseStatus(at(3))
	if !ok {
		status = dynmsg.StatusOpen
	}
	return Data{
		Date:     date,
		RosterID: at(0),
		Setup:    ParseSetup(at(1)),
		Desc:     at(2),
		Status:   status,
		Icon:     at(4),
		Lineup:   DecodeLineup(params),
	}
}

func parseID(id string) (time.Time, bool) {
	ms, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func (e *Event) init(ctx context.Context) error {
	e.entity.Refresh()
	return e.entity.SetupReactions(ctx, e.actions())
}

func (e *Event) actions() []dynmsg.Action {
	return []dynmsg.Action{
		e.statusAction(EmojiPresent, Present),
		e.statusAction(EmojiAbsent, Absent),
		e.statusAction(EmojiLate, Late),
		dynmsg.Toggle(EmojiBench, func(_ context.Context, ev chat.ReactionEvent) bool {
			return e.SetPlayerMood(ev.User.ID, !ev.Removed)
		}),
		dynmsg.Button(EmojiConfigure, func(_ context.Context, ev chat.ReactionEvent) bool {
			go e.configure(ev.User)
			return false
		}).WithPermission(chat.PermissionSendMessages),
	}
}

func (e *Event) statusAction(emoji chat.Emoji, status Attendance) dynmsg.Action {
	return dynmsg.Button(emoji, func(ctx context.Context, ev chat.ReactionEvent) bool {
		changed, err := e.SetPlayerStatus(ev.User.ID, status)
		if errors.Is(err, ErrNoMainSpec) {
			msg := NoSpecMessage
			if r, ok := e.Roster(); ok {
				msg += "\n" + r.Link()
			}
			if _, err := chat.SendDM(ctx, e.env.Deps.Client, ev.User.ID, msg); err != nil {
				logger.Warnf("[event] notify %s: %v", ev.User.ID, err)
			}
			return false
		}
		return changed
	})
}

// Entity returns the underlying entity.
func (e *Event) Entity() *dynmsg.Entity { return e.entity }

// TypeID implements dynmsg.Model.
func (e *Event) TypeID() string { return TypeID }

// EntityID implements dynmsg.Identifier: the start date in unix millis.
func (e *Event) EntityID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return strconv.FormatInt(e.date.UnixMilli(), 10)
}

// ID returns the event id.
func (e *Event) ID() string { return e.EntityID() }

// Date returns the start date.
func (e *Event) Date() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.date
}

// Roster resolves the roster of the event.
func (e *Event) Roster() (roster.Lookup, bool) {
	e.mu.Lock()
	id := e.rosterID
	e.mu.Unlock()
	return e.env.Rosters.ByID(id)
}

// Participant returns a copy of the lineup entry of userID.
func (e *Event) Participant(userID string) (Participant, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.lineup.Get(userID)
	if p == nil {
		return Participant{}, false
	}
	return *p, true
}

// SetPlayerStatus signs userID up with status. It returns false when the
// status is unchanged and ErrNoMainSpec when the roster has no main spec for
// the player.
func (e *Event) SetPlayerStatus(userID string, status Attendance) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p := e.lineup.Get(userID); p != nil && p.Status == status {
		return false, nil
	}
	r, ok := e.env.Rosters.ByID(e.rosterID)
	if !ok {
		return false, fmt.Errorf("%w: roster %s not found", ErrNoMainSpec, e.rosterID)
	}
	if _, ok := r.MainSpec(userID); !ok {
		return false, ErrNoMainSpec
	}
	e.lineup.ensure(userID).Status = status
	return true, nil
}

// SetPlayerMood records whether userID accepts to be benched.
func (e *Event) SetPlayerMood(userID string, benchable bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.lineup.ensure(userID)
	if p.Benchable != nil && *p.Benchable == benchable {
		return false
	}
	p.Benchable = &benchable
	return true
}

// SetDate moves the event and reschedules its closing.
func (e *Event) SetDate(date time.Time) {
	e.mu.Lock()
	e.date = date
	e.mu.Unlock()
	e.scheduleClose()
}

// SetDesc replaces the description.
func (e *Event) SetDesc(desc string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.desc = desc
}

// Encode implements dynmsg.Model.
func (e *Event) Encode() ([]string, urlcodec.Params) {
	status := e.entity.Status()

	e.mu.Lock()
	defer e.mu.Unlock()
	rosterID := e.rosterID
	if rosterID == "" {
		rosterID = "0"
	}
	path := []string{rosterID, e.setup.String(), e.desc, status.String(), e.icon}
	return path, e.lineup.Encode()
}

// Generate implements dynmsg.Model.
func (e *Event) Generate(ctx context.Context) (*chat.Embed, error) {
	r, ok := e.Roster()
	if !ok {
		return nil, errors.New("can't find roster")
	}

	e.mu.Lock()
	date, setup, desc, icon := e.date, e.setup, e.desc, e.icon
	type entry struct {
		id string
		Participant
	}
	var entries []entry
	for _, id := range e.lineup.Players() {
		entries = append(entries, entry{id: id, Participant: *e.lineup.Get(id)})
	}
	e.mu.Unlock()

	var (
		present [4][]string
		absent  []string
		bench   []string
	)
	guildID := e.entity.GuildID()
	for _, p := range entries {
		if p.Status == AttendanceNone {
			continue
		}
		member, err := e.env.Deps.Client.Member(ctx, guildID, p.id)
		if err != nil {
			logger.Warnf("[event] %s: missing member %s: %v", e.ID(), p.id, err)
			continue
		}
		switch p.Status {
		case Present, Late:
			id, ok := r.MainSpec(p.id)
			if !ok {
				continue
			}
			spec, ok := wow.Lookup(id)
			if !ok {
				continue
			}
			line := e.env.Emojis.SpecText(spec) + member.Mention()
			if p.Status == Late {
				line += " " + EmojiLate.String()
			}
			if p.Benchable != nil && *p.Benchable {
				line += " " + EmojiBench.String()
			}
			present[spec.Role] = append(present[spec.Role], line)
		case Absent:
			absent = append(absent, member.Mention())
		case Bench:
			bench = append(bench, member.Mention())
		}
	}

	tanks, heals := len(present[wow.RoleTank]), len(present[wow.RoleHeal])
	melee, ranged := len(present[wow.RoleMelee]), len(present[wow.RoleRanged])
	signed := tanks + heals + melee + ranged
	required := setup.Total()
	missing := max(0, required-signed)

	opts := e.env.Options
	embed := &chat.Embed{
		Title:     FormatDate(date.In(opts.Location)),
		Thumbnail: icon,
	}
	var lines []string
	if desc != "" {
		lines = append(lines, desc)
	}
	lines = append(lines, "*"+humanize.RelTime(date, opts.now(), "ago", "from now")+"*")
	embed.Description = strings.Join(lines, "\n")

	embed.AddField("Setup",
		formatObjective(setup.Tank, tanks, setup.Tank)+"-"+
			formatObjective(setup.Heal, heals, setup.Heal)+"-"+
			formatObjective(setup.DPS, melee+ranged, setup.DPS)+"\n"+chat.Blank,
		true)
	embed.AddField("Signed up", formatObjective(signed, signed, required), true)
	embed.AddField("Missing", strconv.Itoa(missing), true)

	dynmsg.Add3ColumnFields(embed, fmt.Sprintf("__TANKS__  (%d)", tanks), present[wow.RoleTank])
	dynmsg.Add3ColumnFields(embed, fmt.Sprintf("__HEALS__  (%d)", heals), present[wow.RoleHeal])
	dynmsg.Add3ColumnFields(embed, fmt.Sprintf("__DPS__  (%d) *(c:%d,r:%d)*", melee+ranged, melee, ranged),
		present[wow.RoleMelee], present[wow.RoleRanged])

	embed.AddField(chat.Blank,
		fmt.Sprintf("**Absents (%d)**%s%s\n**Bench (%d)**%s%s",
			len(absent), EmQuad, formatList(absent), len(bench), EmQuad, formatList(bench)),
		false)
	return embed, nil
}

func (e *Event) scheduleClose() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.closeTimer != nil {
		e.closeTimer.Stop()
	}
	opts := e.env.Options
	at := e.date.Add(opts.CloseDelay)
	e.closeTimer = time.AfterFunc(at.Sub(opts.Now()), func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := e.Close(ctx); err != nil {
			logger.Errorf("[event] close %s: %v", e.ID(), err)
		}
	})
}

func (e *Event) stopTimer() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.closed = true
	if e.closeTimer != nil {
		e.closeTimer.Stop()
	}
	return true
}

// Close switches the event to StatusClose, detaches it and removes its
// reactions.
func (e *Event) Close(ctx context.Context) error {
	if !e.stopTimer() {
		return nil
	}
	e.env.Calendar.remove(e)
	logger.Infof("[event] closing %s", e.ID())
	err := e.entity.Detach(ctx, dynmsg.StatusClose)
	return errors.Join(err, e.entity.ClearReactions(ctx))
}

// Disconnect detaches the event and removes its reactions, as done on
// shutdown.
func (e *Event) Disconnect(ctx context.Context) error {
	if !e.stopTimer() {
		return nil
	}
	e.env.Calendar.remove(e)
	err := e.entity.Disconnect(ctx)
	return errors.Join(err, e.entity.ClearReactions(ctx))
}

// Cancel detaches the event and deletes its message and snapshot.
func (e *Event) Cancel(ctx context.Context) error {
	e.stopTimer()
	e.env.Calendar.remove(e)
	if err := e.entity.Disconnect(ctx); err != nil {
		logger.Warnf("[event] cancel %s: disconnect: %v", e.ID(), err)
	}

	var errs []error
	for _, m := range e.entity.Messages() {
		if err := e.env.Deps.Client.DeleteMessage(ctx, m.ChannelID, m.ID); err != nil {
			errs = append(errs, fmt.Errorf("delete message %s: %w", m.ID, err))
		}
	}
	if e.env.Deps.Repo != nil {
		if err := e.env.Deps.Repo.Delete(ctx, TypeID, e.ID()); err != nil {
			errs = append(errs, fmt.Errorf("delete snapshot: %w", err))
		}
	}
	logger.Infof("[event] cancelled %s", e.ID())
	return errors.Join(errs...)
}

func (e *Event) destroyed() {
	e.stopTimer()
	e.env.Calendar.remove(e)
}

// Calendar is the set of live events of a guild.
type Calendar struct {
	mu     sync.RWMutex
	events map[*Event]struct{}
}

// NewCalendar creates an empty calendar.
func NewCalendar() *Calendar {
	return &Calendar{events: make(map[*Event]struct{})}
}

func (c *Calendar) add(e *Event) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[e] = struct{}{}
}

func (c *Calendar) remove(e *Event) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.events, e)
}

// List returns the live events by date.
func (c *Calendar) List() []*Event {
	c.mu.RLock()
	out := make([]*Event, 0, len(c.events))
	for e := range c.events {
		out = append(out, e)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Date().Before(out[j].Date()) })
	return out
}

// At returns the live event starting at date, if any.
func (c *Calendar) At(date time.Time) (*Event, bool) {
	for _, e := range c.List() {
		if e.Date().Equal(date) {
			return e, true
		}
	}
	return nil, false
}
