// Package dispatch routes platform events to the components that own them.
//
// The Router holds three tables: reaction listeners keyed by message id,
// command listeners keyed by command name, and lifecycle listeners keyed by
// message id. It also hosts message collectors used by DM sessions to wait
// for the next message of a user.
package dispatch

import (
	"context"
	"sync"

	"github.com/ghetolay/WowBot/internal/chat"
	"github.com/ghetolay/WowBot/internal/logger"
	"github.com/ghetolay/WowBot/internal/metrics"
)

// GenericCommandError is sent to the author of a command that failed for a
// reason other than a FeedbackError.
const GenericCommandError = "An error occurred during your command"

// ReactionListener handles a reaction on a registered message. Returning
// strip=true removes the user's reaction afterwards.
type ReactionListener func(ctx context.Context, ev chat.ReactionEvent) (strip bool, err error)

// CommandListener handles a guild command.
type CommandListener func(ctx context.Context, cmd *Command) error

// LifecycleListener is called once when a registered message is deleted.
type LifecycleListener func(ctx context.Context, ref chat.MessageRef)

// Client is the platform surface the router needs.
type Client interface {
	Self() chat.User
	RemoveReaction(ctx context.Context, channelID, messageID string, emoji chat.Emoji, userID string) error
	chat.MessageWriter
	chat.DirectMessenger
}

// Option configures a Router.
type Option func(*Router)

// WithPrefix sets the command prefix.
func WithPrefix(prefix string) Option {
	return func(r *Router) { r.prefix = prefix }
}

// WithMetrics attaches collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// Router dispatches reactions, commands and deletions.
type Router struct {
	client  Client
	prefix  string
	metrics *metrics.Metrics

	mu         sync.RWMutex
	reactions  map[string]ReactionListener
	commands   map[string]CommandListener
	lifecycle  map[string]LifecycleListener
	collectors []*collector
}

// NewRouter creates a router for client.
func NewRouter(client Client, opts ...Option) *Router {
	r := &Router{
		client:    client,
		prefix:    DefaultPrefix,
		reactions: make(map[string]ReactionListener),
		commands:  make(map[string]CommandListener),
		lifecycle: make(map[string]LifecycleListener),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterReactions binds l to every message id. Re-registering overwrites.
func (r *Router) RegisterReactions(messageIDs []string, l ReactionListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range messageIDs {
		r.reactions[id] = l
	}
}

// UnregisterReactions removes the reaction listeners of every message id.
func (r *Router) UnregisterReactions(messageIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range messageIDs {
		delete(r.reactions, id)
	}
}

// RegisterCommand binds l to name.
func (r *Router) RegisterCommand(name string, l CommandListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[name]; exists {
		logger.Errorf("[router] command %q registered twice; overwriting", name)
	}
	r.commands[name] = l
}

// UnregisterCommand removes the listener of name.
func (r *Router) UnregisterCommand(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.commands, name)
}

// RegisterLifecycle binds l to the deletion of every message id.
func (r *Router) RegisterLifecycle(messageIDs []string, l LifecycleListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range messageIDs {
		r.lifecycle[id] = l
	}
}

// UnregisterLifecycle removes the lifecycle listeners of every message id.
func (r *Router) UnregisterLifecycle(messageIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range messageIDs {
		delete(r.lifecycle, id)
	}
}

// HasReactionListener reports whether a listener is bound to messageID.
func (r *Router) HasReactionListener(messageID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.reactions[messageID]
	return ok
}

// HandleReaction routes a reaction event.
func (r *Router) HandleReaction(ctx context.Context, ev chat.ReactionEvent) {
	if ev.User.Bot || ev.User.ID == r.client.Self().ID {
		r.metrics.Reaction("ignored")
		return
	}

	r.mu.RLock()
	l, ok := r.reactions[ev.Message.MessageID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	strip, err := l(ctx, ev)
	if err != nil {
		r.metrics.Reaction("failed")
		logger.Errorf("[router] reaction %s on %s by %s: %v", ev.Emoji.APIName(), ev.Message.MessageID, ev.User.ID, err)
	}
	if !strip {
		if err == nil {
			r.metrics.Reaction("handled")
		}
		return
	}

	r.metrics.Reaction("stripped")
	if err := r.client.RemoveReaction(ctx, ev.Message.ChannelID, ev.Message.MessageID, ev.Emoji, ev.User.ID); err != nil {
		logger.Warnf("[router] strip reaction %s on %s: %v", ev.Emoji.APIName(), ev.Message.MessageID, err)
	}
}

// HandleMessage offers msg to collectors, then routes it as a command.
func (r *Router) HandleMessage(ctx context.Context, msg *chat.Message) {
	if r.offer(msg) {
		return
	}
	if msg.Author.Bot || msg.Author.ID == r.client.Self().ID || msg.DM {
		return
	}

	cmd, ok := ParseCommand(msg.Content, r.prefix)
	if !ok {
		return
	}
	cmd.Message = msg

	r.mu.RLock()
	l, ok := r.commands[cmd.Name]
	r.mu.RUnlock()
	if !ok {
		logger.Debugf("[router] unknown command %q from %s", cmd.Name, msg.Author.ID)
		return
	}

	if err := r.client.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		logger.Warnf("[router] delete command message %s: %v", msg.ID, err)
	}

	err := l(ctx, cmd)
	if err == nil {
		r.metrics.Command(cmd.Name, "ok")
		return
	}

	reply := GenericCommandError
	if fe, ok := AsFeedback(err); ok {
		r.metrics.Command(cmd.Name, "feedback")
		reply = fe.Reason
		logger.Debugf("[router] command %q by %s rejected: %v", cmd.Name, msg.Author.ID, err)
	} else {
		r.metrics.Command(cmd.Name, "failed")
		logger.Errorf("[router] command %q by %s failed: %v", cmd.Name, msg.Author.ID, err)
	}
	if _, err := chat.SendDM(ctx, r.client, msg.Author.ID, reply); err != nil {
		logger.Warnf("[router] notify %s: %v", msg.Author.ID, err)
	}
}

// HandleDelete runs and removes the lifecycle listener of ref.
func (r *Router) HandleDelete(ctx context.Context, ref chat.MessageRef) {
	r.mu.Lock()
	l, ok := r.lifecycle[ref.MessageID]
	delete(r.lifecycle, ref.MessageID)
	r.mu.Unlock()
	if ok {
		l(ctx, ref)
	}
}
