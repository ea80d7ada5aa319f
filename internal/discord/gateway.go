package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/ghetolay/WowBot/internal/chat"
	"github.com/ghetolay/WowBot/internal/dispatch"
	"github.com/ghetolay/WowBot/internal/logger"
)

// Handler receives the gateway events once converted. dispatch.Router
// implements it.
type Handler interface {
	HandleReaction(ctx context.Context, ev chat.ReactionEvent)
	HandleMessage(ctx context.Context, msg *chat.Message)
	HandleDelete(ctx context.Context, ref chat.MessageRef)
}

// Gateway pumps gateway events into a Handler. Events about one message run
// in order on their own lane of the queue.
type Gateway struct {
	client  *Client
	handler Handler
	queue   *dispatch.Queue
	ctx     context.Context

	// OnReady runs once per READY with the guilds the bot is in.
	OnReady func(ctx context.Context, self chat.User, guilds []chat.Guild)

	removers []func()
}

// NewGateway creates a pump. ctx is the context handed to the handler.
func NewGateway(ctx context.Context, client *Client, h Handler, q *dispatch.Queue) *Gateway {
	return &Gateway{client: client, handler: h, queue: q, ctx: ctx}
}

// Open registers the handlers and connects.
func (g *Gateway) Open() error {
	g.setupHandlers()
	if err := g.client.s.Open(); err != nil {
		g.removeHandlers()
		return fmt.Errorf("open gateway: %w", err)
	}
	return nil
}

// Close disconnects and unregisters the handlers.
func (g *Gateway) Close() error {
	g.removeHandlers()
	if err := g.client.s.Close(); err != nil {
		return fmt.Errorf("close gateway: %w", err)
	}
	return nil
}

func (g *Gateway) setupHandlers() {
	s := g.client.s
	g.removers = append(g.removers,
		s.AddHandler(g.onReady),
		s.AddHandler(g.onMessageCreate),
		s.AddHandler(g.onReactionAdd),
		s.AddHandler(g.onReactionRemove),
		s.AddHandler(g.onMessageDelete),
	)
}

func (g *Gateway) removeHandlers() {
	for _, rm := range g.removers {
		rm()
	}
	g.removers = nil
}

func (g *Gateway) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	self := convertUser(r.User)
	logger.Infof("[gateway] ready as %s (%s) in %d guild(s)", self.Username, self.ID, len(r.Guilds))
	if g.OnReady == nil {
		return
	}
	guilds := make([]chat.Guild, 0, len(r.Guilds))
	for _, gd := range r.Guilds {
		guilds = append(guilds, chat.Guild{ID: gd.ID, Name: gd.Name})
	}
	go g.OnReady(g.ctx, self, guilds)
}

func (g *Gateway) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.Author == nil {
		return
	}
	msg := convertMessage(m.Message)
	g.queue.Enqueue("channel:"+msg.ChannelID, func() {
		g.handler.HandleMessage(g.ctx, msg)
	})
}

func (g *Gateway) onReactionAdd(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	var user chat.User
	if r.Member != nil && r.Member.User != nil {
		user = convertUser(r.Member.User)
	}
	g.reaction(r.MessageReaction, user, false)
}

func (g *Gateway) onReactionRemove(_ *discordgo.Session, r *discordgo.MessageReactionRemove) {
	g.reaction(r.MessageReaction, chat.User{}, true)
}

func (g *Gateway) reaction(r *discordgo.MessageReaction, user chat.User, removed bool) {
	if r == nil {
		return
	}
	g.queue.Enqueue("message:"+r.MessageID, func() {
		u := user
		if u.ID == "" {
			u = g.client.user(g.ctx, r.GuildID, r.UserID)
		}
		g.handler.HandleReaction(g.ctx, convertReaction(r, u, removed))
	})
}

func (g *Gateway) onMessageDelete(_ *discordgo.Session, m *discordgo.MessageDelete) {
	if m.Message == nil {
		return
	}
	ref := chat.MessageRef{GuildID: m.GuildID, ChannelID: m.ChannelID, MessageID: m.ID}
	g.queue.Enqueue("message:"+ref.MessageID, func() {
		g.handler.HandleDelete(g.ctx, ref)
	})
}

var _ Handler = (*dispatch.Router)(nil)
