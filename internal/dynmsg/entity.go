// Package dynmsg turns bot-authored messages into stateful entities.
//
// An Entity owns one message carrying an embed plus optional placeholder
// messages that only host reactions. Its state lives in the author link of
// the embed (see urlcodec), so entities are recovered after a restart by
// scanning channel history. Reactions on the owned messages act as toggles
// and buttons that mutate the model, after which the entity re-renders.
package dynmsg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ghetolay/WowBot/internal/chat"
	"github.com/ghetolay/WowBot/internal/dispatch"
	"github.com/ghetolay/WowBot/internal/logger"
	"github.com/ghetolay/WowBot/internal/metrics"
	"github.com/ghetolay/WowBot/internal/urlcodec"
)

// ErrDeleted is returned when rendering an entity whose message is gone.
var ErrDeleted = errors.New("dynmsg: message is deleted")

// NoPrivilegesMessage is sent to users lacking the permission of an action.
const NoPrivilegesMessage = "You don't have privileges to perform that action."

const refreshTimeout = 30 * time.Second

// Model is the domain side of an entity.
type Model interface {
	// TypeID is the short type tag placed in the link host.
	TypeID() string
	// Generate builds the embed for the current state.
	Generate(ctx context.Context) (*chat.Embed, error)
	// Encode serializes the current state.
	Encode() (path []string, params urlcodec.Params)
}

// Identifier lets a model pick its id. The first message id is used otherwise.
type Identifier interface {
	EntityID() string
}

// Colorer lets a model override the status palette.
type Colorer interface {
	StatusColor(Status) (int, bool)
}

// Deps is what every entity is built with.
type Deps struct {
	Client  chat.Client
	Router  *dispatch.Router
	Repo    Repository
	Tracker *Tracker
	Metrics *metrics.Metrics
}

// Option configures an entity.
type Option func(*Entity)

// WithStatus sets the initial status.
func WithStatus(s Status) Option {
	return func(e *Entity) { e.status = s }
}

// OnDestroy registers fn to run when the entity's message is deleted.
func OnDestroy(fn func()) Option {
	return func(e *Entity) { e.onDestroy = append(e.onDestroy, fn) }
}

// Entity couples a Model with the messages that display it.
type Entity struct {
	deps      Deps
	model     Model
	channelID string

	renderMu sync.Mutex
	pending  sync.WaitGroup

	mu        sync.Mutex
	messages  []*chat.Message
	status    Status
	errs      []error
	actions   []Action
	lastEmbed *chat.Embed
	savedID   string
	attached  bool
	deleted   bool
	onDestroy []func()
}

// New binds model to messages and registers its listeners. messages[0]
// carries the embed.
func New(deps Deps, model Model, channelID string, messages []*chat.Message, opts ...Option) *Entity {
	e := &Entity{
		deps:      deps,
		model:     model,
		channelID: channelID,
		messages:  append([]*chat.Message(nil), messages...),
		status:    StatusOpen,
		attached:  true,
	}
	if len(messages) > 0 {
		e.lastEmbed = messages[0].FirstEmbed().Clone()
	}
	for _, opt := range opts {
		opt(e)
	}

	ids := e.messageIDs()
	deps.Router.RegisterReactions(ids, e.onReaction)
	deps.Router.RegisterLifecycle(ids, e.onDeleted)
	if deps.Tracker != nil {
		deps.Tracker.add(e)
	}
	return e
}

// Post creates the messages of a new entity: one embed message followed by
// extra blank placeholders.
func Post(ctx context.Context, client chat.MessageWriter, channelID string, extra int) ([]*chat.Message, error) {
	first, err := client.SendEmbed(ctx, channelID, &chat.Embed{Description: chat.Blank})
	if err != nil {
		return nil, fmt.Errorf("post entity message: %w", err)
	}
	msgs := []*chat.Message{first}
	for i := 0; i < extra; i++ {
		m, err := client.SendMessage(ctx, channelID, chat.Blank)
		if err != nil {
			return msgs, fmt.Errorf("post placeholder %d: %w", i+1, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Model returns the model.
func (e *Entity) Model() Model { return e.model }

// TypeID returns the model type tag.
func (e *Entity) TypeID() string { return e.model.TypeID() }

// ID returns the entity id.
func (e *Entity) ID() string {
	if ider, ok := e.model.(Identifier); ok {
		if id := ider.EntityID(); id != "" {
			return id
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.messages) == 0 {
		return ""
	}
	return e.messages[0].ID
}

// ChannelID returns the channel holding the entity.
func (e *Entity) ChannelID() string { return e.channelID }

// GuildID returns the guild of the entity, if any.
func (e *Entity) GuildID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.messages) == 0 {
		return ""
	}
	return e.messages[0].GuildID
}

// Ref returns the reference of the embed message.
func (e *Entity) Ref() chat.MessageRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.messages) == 0 {
		return chat.MessageRef{ChannelID: e.channelID}
	}
	return e.messages[0].Ref()
}

// Messages returns the owned messages.
func (e *Entity) Messages() []*chat.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*chat.Message(nil), e.messages...)
}

// Status returns the current status.
func (e *Entity) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// SetStatus changes the status. It has no effect while in StatusError.
func (e *Entity) SetStatus(s Status) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == StatusError || e.status == s {
		return false
	}
	e.status = s
	return true
}

// ResetStatus clears StatusError and any recorded errors.
func (e *Entity) ResetStatus(s Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = s
	e.errs = nil
}

// Errors returns the recorded render errors.
func (e *Entity) Errors() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]error(nil), e.errs...)
}

// Attached reports whether listeners are still registered.
func (e *Entity) Attached() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attached
}

// Actions returns the current reaction actions.
func (e *Entity) Actions() []Action {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Action(nil), e.actions...)
}

// Fail records err and switches to StatusError.
func (e *Entity) Fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = StatusError
	e.errs = append(e.errs, err)
}

func (e *Entity) messageIDs() []string {
	ids := make([]string, 0, len(e.messages))
	for _, m := range e.messages {
		ids = append(ids, m.ID)
	}
	return ids
}

func (e *Entity) statusColor(s Status) int {
	if c, ok := e.model.(Colorer); ok {
		if color, ok := c.StatusColor(s); ok {
			return color
		}
	}
	if color, ok := DefaultStatusColor(s); ok {
		return color
	}
	return ColorError
}

// Refresh renders asynchronously. Errors are logged.
func (e *Entity) Refresh() {
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if _, err := e.Render(ctx); err != nil && !errors.Is(err, ErrDeleted) {
			logger.Errorf("[dynmsg] %s %s: render: %v", e.TypeID(), e.ID(), err)
		}
	}()
}

// Wait blocks until every pending Refresh finished.
func (e *Entity) Wait() { e.pending.Wait() }

// Render pushes the current state to the platform.
//
// The live path regenerates the embed (or reuses the last one while
// disconnected). Any failure there switches the entity to StatusError and
// the error path runs once, showing the recorded errors in the footer.
func (e *Entity) Render(ctx context.Context) (*chat.Message, error) {
	e.renderMu.Lock()
	defer e.renderMu.Unlock()

	e.mu.Lock()
	status, deleted := e.status, e.deleted
	e.mu.Unlock()

	if deleted {
		return nil, ErrDeleted
	}
	if status == StatusError {
		return e.renderError(ctx)
	}

	msg, liveErr := e.renderLive(ctx, status)
	if liveErr == nil {
		return msg, nil
	}

	e.Fail(&RenderError{TypeID: e.TypeID(), Err: liveErr})
	msg, err := e.renderError(ctx)
	return msg, errors.Join(liveErr, err)
}

func (e *Entity) renderLive(ctx context.Context, status Status) (*chat.Message, error) {
	var (
		embed *chat.Embed
		link  string
		path  = "live"
	)

	if status == StatusDisconnected {
		path = "disconnected"
		e.mu.Lock()
		embed = e.lastEmbed.Clone()
		e.mu.Unlock()
		if embed == nil {
			embed = &chat.Embed{Description: chat.Blank}
		}
	} else {
		generated, err := e.model.Generate(ctx)
		if err != nil {
			return nil, fmt.Errorf("generate: %w", err)
		}
		embed = generated

		p, params := e.model.Encode()
		link, err = urlcodec.Encode(urlcodec.Host(e.ID(), e.TypeID()), p, params)
		if err != nil {
			return nil, fmt.Errorf("encode: %w", err)
		}
		author := &chat.EmbedAuthor{Name: chat.Blank, URL: link}
		if embed.Author != nil {
			if embed.Author.Name != "" {
				author.Name = embed.Author.Name
			}
			author.IconURL = embed.Author.IconURL
		}
		embed.Author = author
	}

	embed.Footer = ""
	embed.Color = e.statusColor(status)

	msg, err := e.edit(ctx, embed)
	if err != nil {
		return nil, err
	}
	e.deps.Metrics.Render(e.TypeID(), path)

	if link != "" {
		e.save(ctx, link)
	}
	return msg, nil
}

func (e *Entity) renderError(ctx context.Context) (*chat.Message, error) {
	e.mu.Lock()
	embed := e.lastEmbed.Clone()
	msgs := make([]string, 0, len(e.errs))
	for _, err := range e.errs {
		msgs = append(msgs, err.Error())
	}
	e.mu.Unlock()

	if embed == nil {
		embed = &chat.Embed{Description: chat.Blank}
	}
	embed.Footer = strings.Join(msgs, "\n")
	embed.Color = e.statusColor(StatusError)

	msg, err := e.edit(ctx, embed)
	if err != nil {
		return nil, fmt.Errorf("render error state: %w", err)
	}
	e.deps.Metrics.Render(e.TypeID(), "error")
	return msg, nil
}

func (e *Entity) edit(ctx context.Context, embed *chat.Embed) (*chat.Message, error) {
	e.mu.Lock()
	if len(e.messages) == 0 {
		e.mu.Unlock()
		return nil, ErrDeleted
	}
	first := e.messages[0]
	e.mu.Unlock()

	msg, err := e.deps.Client.EditEmbed(ctx, e.channelID, first.ID, embed)
	if err != nil {
		return nil, fmt.Errorf("edit message %s: %w", first.ID, err)
	}

	e.mu.Lock()
	e.lastEmbed = embed.Clone()
	if msg != nil {
		e.messages[0] = msg
	}
	e.mu.Unlock()
	return msg, nil
}

func (e *Entity) save(ctx context.Context, link string) {
	if e.deps.Repo == nil {
		return
	}
	id := e.ID()

	e.mu.Lock()
	previous := e.savedID
	snap := Snapshot{
		TypeID:     e.TypeID(),
		ID:         id,
		ChannelID:  e.channelID,
		MessageIDs: e.messageIDs(),
		Link:       link,
		UpdatedAt:  time.Now(),
	}
	e.mu.Unlock()

	if previous != "" && previous != id {
		if err := e.deps.Repo.Delete(ctx, snap.TypeID, previous); err != nil {
			logger.Warnf("[dynmsg] %s %s: drop stale snapshot %s: %v", snap.TypeID, id, previous, err)
		}
	}
	if err := e.deps.Repo.Save(ctx, snap); err != nil {
		logger.Warnf("[dynmsg] %s %s: save snapshot: %v", snap.TypeID, id, err)
		return
	}

	e.mu.Lock()
	e.savedID = id
	e.mu.Unlock()
}

// Disconnect unregisters the listeners, switches to StatusDisconnected and
// renders once.
func (e *Entity) Disconnect(ctx context.Context) error {
	return e.Detach(ctx, StatusDisconnected)
}

// Detach unregisters the listeners, switches to status and renders once.
// A StatusError entity keeps its status.
func (e *Entity) Detach(ctx context.Context, status Status) error {
	if !e.detach(status) {
		return nil
	}
	_, err := e.Render(ctx)
	if errors.Is(err, ErrDeleted) {
		return nil
	}
	return err
}

func (e *Entity) detach(status Status) bool {
	e.mu.Lock()
	if !e.attached {
		e.mu.Unlock()
		return false
	}
	e.attached = false
	if e.status != StatusError {
		e.status = status
	}
	ids := e.messageIDs()
	e.mu.Unlock()

	e.deps.Router.UnregisterReactions(ids)
	e.deps.Router.UnregisterLifecycle(ids)
	if e.deps.Tracker != nil {
		e.deps.Tracker.remove(e)
	}
	return true
}

func (e *Entity) onDeleted(ctx context.Context, ref chat.MessageRef) {
	e.mu.Lock()
	mainDeleted := len(e.messages) > 0 && e.messages[0].ID == ref.MessageID
	if mainDeleted {
		e.deleted = true
	}
	others := make([]string, 0, len(e.messages))
	for _, m := range e.messages {
		if m.ID != ref.MessageID {
			others = append(others, m.ID)
		}
	}
	hooks := e.onDestroy
	e.onDestroy = nil
	e.mu.Unlock()

	logger.Infof("[dynmsg] %s %s: message %s deleted; destroying", e.TypeID(), e.ID(), ref.MessageID)
	if err := e.Disconnect(ctx); err != nil {
		logger.Warnf("[dynmsg] %s %s: disconnect: %v", e.TypeID(), e.ID(), err)
	}

	if mainDeleted {
		for _, id := range others {
			if err := e.deps.Client.DeleteMessage(ctx, e.channelID, id); err != nil {
				logger.Warnf("[dynmsg] delete placeholder %s: %v", id, err)
			}
		}
		if e.deps.Repo != nil {
			if err := e.deps.Repo.Delete(ctx, e.TypeID(), e.ID()); err != nil {
				logger.Warnf("[dynmsg] %s %s: delete snapshot: %v", e.TypeID(), e.ID(), err)
			}
		}
	}

	for _, fn := range hooks {
		fn()
	}
}

func (e *Entity) onReaction(ctx context.Context, ev chat.ReactionEvent) (bool, error) {
	e.mu.Lock()
	action, ok := findAction(e.actions, ev.Emoji)
	e.mu.Unlock()
	if !ok {
		return false, nil
	}
	if action.IsButton() && ev.Removed {
		return false, nil
	}

	allowed, err := e.allowed(ctx, action, ev)
	if err != nil {
		return action.IsButton(), err
	}
	if !allowed {
		if !ev.Removed {
			if _, err := chat.SendDM(ctx, e.deps.Client, ev.User.ID, NoPrivilegesMessage); err != nil {
				logger.Warnf("[dynmsg] notify %s: %v", ev.User.ID, err)
			}
		}
		return action.IsButton(), nil
	}

	if action.Handle != nil && action.Handle(ctx, ev) {
		e.Refresh()
	}
	return action.IsButton(), nil
}

func (e *Entity) allowed(ctx context.Context, a Action, ev chat.ReactionEvent) (bool, error) {
	if a.Permission != 0 {
		ok, err := e.deps.Client.HasPermission(ctx, ev.Message.ChannelID, ev.User.ID, a.Permission)
		if err != nil {
			return false, fmt.Errorf("check permission: %w", err)
		}
		if !ok {
			return false, nil
		}
	}
	if a.Role != "" {
		member, err := e.deps.Client.Member(ctx, ev.Message.GuildID, ev.User.ID)
		if err != nil {
			return false, fmt.Errorf("resolve member: %w", err)
		}
		if !member.HasRole(a.Role) {
			return false, nil
		}
	}
	return true, nil
}
