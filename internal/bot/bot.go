// Package bot wires the entities, commands and platform together.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ghetolay/WowBot/internal/chat"
	"github.com/ghetolay/WowBot/internal/config"
	"github.com/ghetolay/WowBot/internal/dispatch"
	"github.com/ghetolay/WowBot/internal/dmsession"
	"github.com/ghetolay/WowBot/internal/dynmsg"
	"github.com/ghetolay/WowBot/internal/events"
	"github.com/ghetolay/WowBot/internal/logger"
	"github.com/ghetolay/WowBot/internal/metrics"
	"github.com/ghetolay/WowBot/internal/roster"
	"github.com/ghetolay/WowBot/internal/wow"
)

// Options configures a Bot.
type Options struct {
	Config  *config.Config
	Client  chat.Client
	Metrics *metrics.Metrics
	// Repository builds the entity repository over the history scanner.
	// Nil means history only.
	Repository func(s *dynmsg.Scanner) dynmsg.Repository
	// Now overrides the clock of events.
	Now func() time.Time
}

// Bot owns the per guild state.
type Bot struct {
	cfg      *config.Config
	client   chat.Client
	metrics  *metrics.Metrics
	router   *dispatch.Router
	sessions *dmsession.Runner
	tracker  *dynmsg.Tracker
	scanner  *dynmsg.Scanner
	repo     dynmsg.Repository
	now      func() time.Time

	mu       sync.Mutex
	emojis   *wow.Emojis
	guilds   map[string]*guild
	runCtx   context.Context
	stopRuns context.CancelFunc
}

type guild struct {
	id            string
	rosterChannel string
	eventChannel  string
	rosters       *roster.Registry
	calendar      *events.Calendar
	rosterEnv     roster.Env
	eventEnv      events.Env
}

// New creates a bot and registers its commands.
func New(opts Options) *Bot {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	b := &Bot{
		cfg:     cfg,
		client:  opts.Client,
		metrics: opts.Metrics,
		tracker: dynmsg.NewTracker(opts.Metrics),
		now:     opts.Now,
		guilds:  make(map[string]*guild),
	}
	b.router = dispatch.NewRouter(opts.Client,
		dispatch.WithPrefix(cfg.Discord.CommandPrefix),
		dispatch.WithMetrics(opts.Metrics),
	)
	b.sessions = dmsession.NewRunner(opts.Client, b.router, opts.Metrics)
	b.sessions.Defaults = dmsession.Config{
		ExitCommand: cfg.Session.ExitCommand,
		HelpCommand: cfg.Session.HelpCommand,
		IdleTimeout: cfg.Session.IdleTimeout,
	}
	b.scanner = &dynmsg.Scanner{
		Reader:   opts.Client,
		Writer:   opts.Client,
		Metrics:  opts.Metrics,
		PageSize: cfg.Scan.PageSize,
	}
	if opts.Repository != nil {
		b.repo = opts.Repository(b.scanner)
	} else {
		b.repo = &dynmsg.HistoryRepository{Scanner: b.scanner}
	}
	b.runCtx, b.stopRuns = context.WithCancel(context.Background())

	b.router.RegisterCommand(roster.CommandName, roster.Command(b.rosterEnv))
	b.router.RegisterCommand(events.CommandName, events.Command(b.eventEnv))
	return b
}

// Router returns the dispatch router fed by the gateway.
func (b *Bot) Router() *dispatch.Router { return b.router }

// Tracker returns the live entities.
func (b *Bot) Tracker() *dynmsg.Tracker { return b.tracker }

// Ready initializes every guild. It runs once the bot identity is known.
func (b *Bot) Ready(ctx context.Context, self chat.User, guilds []chat.Guild) {
	b.scanner.Self = self

	if id := b.cfg.Discord.EmojiGuildID; id != "" {
		emojis, err := wow.LoadEmojis(ctx, b.client, id)
		if err != nil {
			logger.Errorf("[bot] %v", err)
		} else {
			logger.Infof("[bot] loaded %d emojis from %s", emojis.Len(), id)
			b.mu.Lock()
			b.emojis = emojis
			b.mu.Unlock()
		}
	}

	for _, g := range guilds {
		if g.ID == b.cfg.Discord.EmojiGuildID {
			continue
		}
		if err := b.InitGuild(ctx, g.ID); err != nil {
			logger.Errorf("[bot] init guild %s (%s): %v", g.Name, g.ID, err)
		}
	}
}

// InitGuild resolves the channels of guildID, loads its rosters then its
// events and starts the recurring events.
func (b *Bot) InitGuild(ctx context.Context, guildID string) error {
	b.mu.Lock()
	_, done := b.guilds[guildID]
	b.mu.Unlock()
	if done {
		return nil
	}

	channels, err := b.client.Channels(ctx, guildID)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}
	emojis, err := b.guildEmojis(ctx, guildID)
	if err != nil {
		return err
	}

	g := &guild{
		id:            guildID,
		rosterChannel: resolveChannel(channels, b.cfg.Channels.Roster),
		eventChannel:  resolveChannel(channels, b.cfg.Channels.Events),
		rosters:       roster.NewRegistry(),
		calendar:      events.NewCalendar(),
	}
	deps := dynmsg.Deps{
		Client:  b.client,
		Router:  b.router,
		Repo:    b.repo,
		Tracker: b.tracker,
		Metrics: b.metrics,
	}
	g.rosterEnv = roster.Env{Deps: deps, Emojis: emojis, Registry: g.rosters}

	opts := b.cfg.EventOptions()
	if b.now != nil {
		opts.Now = b.now
	}
	g.eventEnv = events.Env{
		Deps:     deps,
		Emojis:   emojis,
		Rosters:  g.rosters,
		Calendar: g.calendar,
		Sessions: b.sessions,
		Options:  opts,
	}

	b.mu.Lock()
	b.guilds[guildID] = g
	b.mu.Unlock()

	if g.rosterChannel == "" {
		logger.Warnf("[bot] guild %s: no roster channel matching %q", guildID, b.cfg.Channels.Roster)
		return nil
	}
	rosters, err := roster.Load(ctx, g.rosterEnv, g.rosterChannel, nil)
	if err != nil {
		return err
	}
	logger.Infof("[bot] guild %s: %d roster(s) in %s", guildID, len(rosters), g.rosterChannel)

	if g.eventChannel == "" {
		logger.Warnf("[bot] guild %s: no event channel matching %q", guildID, b.cfg.Channels.Events)
		return nil
	}
	if _, err := events.Load(ctx, g.eventEnv, g.eventChannel); err != nil {
		return err
	}
	for _, r := range b.cfg.Recurrences() {
		if err := events.Schedule(b.runCtx, g.eventEnv, g.eventChannel, r); err != nil {
			logger.Errorf("[bot] guild %s: %v", guildID, err)
		}
	}
	return nil
}

func (b *Bot) guildEmojis(ctx context.Context, guildID string) (*wow.Emojis, error) {
	b.mu.Lock()
	shared := b.emojis
	b.mu.Unlock()
	if shared != nil {
		return shared, nil
	}
	return wow.LoadEmojis(ctx, b.client, guildID)
}

// resolveChannel matches ref against channel ids first, then as a case
// insensitive fragment of the name.
func resolveChannel(channels []chat.Channel, ref string) string {
	if ref == "" {
		return ""
	}
	for _, ch := range channels {
		if ch.ID == ref {
			return ch.ID
		}
	}
	ref = strings.ToLower(ref)
	for _, ch := range channels {
		if strings.Contains(strings.ToLower(ch.Name), ref) {
			return ch.ID
		}
	}
	return ""
}

func (b *Bot) guild(guildID string) (*guild, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.guilds[guildID]
	return g, ok
}

func (b *Bot) rosterEnv(guildID string) (roster.Env, string, bool) {
	g, ok := b.guild(guildID)
	if !ok || g.rosterChannel == "" {
		return roster.Env{}, "", false
	}
	return g.rosterEnv, g.rosterChannel, true
}

func (b *Bot) eventEnv(guildID string) (events.Env, string, bool) {
	g, ok := b.guild(guildID)
	if !ok || g.eventChannel == "" || g.rosterChannel == "" {
		return events.Env{}, "", false
	}
	return g.eventEnv, g.eventChannel, true
}

type disconnecter interface {
	Disconnect(ctx context.Context) error
}

// Shutdown stops the recurring events and disconnects every live entity so
// their messages show they no longer react.
func (b *Bot) Shutdown(ctx context.Context) error {
	b.stopRuns()

	var (
		errs []error
		n    int
	)
	for _, e := range b.tracker.List() {
		if !e.Attached() {
			continue
		}
		n++
		var err error
		if d, ok := e.Model().(disconnecter); ok {
			err = d.Disconnect(ctx)
		} else {
			err = e.Disconnect(ctx)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("disconnect %s %s: %w", e.TypeID(), e.ID(), err))
		}
	}
	logger.Infof("[bot] disconnected %d entities", n)
	return errors.Join(errs...)
}
