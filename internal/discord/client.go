// Package discord adapts a discordgo session to the chat interfaces.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/ghetolay/WowBot/internal/chat"
	"github.com/ghetolay/WowBot/internal/logger"
)

// Intents are the gateway intents the bot needs.
const Intents = discordgo.IntentGuilds |
	discordgo.IntentGuildMembers |
	discordgo.IntentGuildMessages |
	discordgo.IntentGuildMessageReactions |
	discordgo.IntentDirectMessages |
	discordgo.IntentMessageContent

// Reaction endpoints share a tight bucket; spacing mutations avoids
// bursts of 429 responses when several entities set up at once.
const (
	reactionRate  = rate.Limit(4)
	reactionBurst = 1
	membersPage   = 1000
)

// ErrNotFound is returned when the platform answers 404.
var ErrNotFound = errors.New("discord: not found")

// Client implements chat.Client over a discordgo session.
type Client struct {
	s         *discordgo.Session
	reactions *rate.Limiter
}

// New opens nothing; it only wraps s.
func New(s *discordgo.Session) *Client {
	return &Client{s: s, reactions: rate.NewLimiter(reactionRate, reactionBurst)}
}

// NewSession creates a bot session for token with the needed intents.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = Intents
	// Handlers only enqueue onto ordered lanes, so they must run in arrival order.
	s.SyncEvents = true
	s.StateEnabled = true
	s.State.TrackMembers = true
	return s, nil
}

// Session returns the wrapped session.
func (c *Client) Session() *discordgo.Session { return c.s }

// Self implements chat.Client.
func (c *Client) Self() chat.User {
	if c.s.State == nil || c.s.State.User == nil {
		return chat.User{}
	}
	return convertUser(c.s.State.User)
}

func wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
		err = fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Message implements chat.MessageReader.
func (c *Client) Message(ctx context.Context, channelID, messageID string) (*chat.Message, error) {
	m, err := c.s.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap(err, "fetch message %s", messageID)
	}
	return convertMessage(m), nil
}

// Messages implements chat.MessageReader.
func (c *Client) Messages(ctx context.Context, channelID string, limit int, before, after string) ([]*chat.Message, error) {
	msgs, err := c.s.ChannelMessages(channelID, limit, before, after, "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap(err, "fetch history of %s", channelID)
	}
	out := make([]*chat.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, convertMessage(m))
	}
	chat.SortNewestFirst(out)
	return out, nil
}

// SendMessage implements chat.MessageWriter.
func (c *Client) SendMessage(ctx context.Context, channelID, content string) (*chat.Message, error) {
	m, err := c.s.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap(err, "send message to %s", channelID)
	}
	return convertMessage(m), nil
}

// SendEmbed implements chat.MessageWriter.
func (c *Client) SendEmbed(ctx context.Context, channelID string, embed *chat.Embed) (*chat.Message, error) {
	m, err := c.s.ChannelMessageSendEmbed(channelID, toEmbed(embed), discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap(err, "send embed to %s", channelID)
	}
	return convertMessage(m), nil
}

// EditEmbed implements chat.MessageWriter.
func (c *Client) EditEmbed(ctx context.Context, channelID, messageID string, embed *chat.Embed) (*chat.Message, error) {
	m, err := c.s.ChannelMessageEditEmbed(channelID, messageID, toEmbed(embed), discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap(err, "edit message %s", messageID)
	}
	return convertMessage(m), nil
}

// DeleteMessage implements chat.MessageWriter.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return wrap(c.s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)), "delete message %s", messageID)
}

func (c *Client) waitReaction(ctx context.Context) error {
	if err := c.reactions.Wait(ctx); err != nil {
		return fmt.Errorf("reaction limiter: %w", err)
	}
	return nil
}

// AddReaction implements chat.Reactor.
func (c *Client) AddReaction(ctx context.Context, channelID, messageID string, emoji chat.Emoji) error {
	if err := c.waitReaction(ctx); err != nil {
		return err
	}
	logger.Tracef("[discord] react %s on %s", emoji.APIName(), messageID)
	return wrap(c.s.MessageReactionAdd(channelID, messageID, emoji.APIName(), discordgo.WithContext(ctx)),
		"add reaction %s on %s", emoji.APIName(), messageID)
}

// RemoveReaction implements chat.Reactor.
func (c *Client) RemoveReaction(ctx context.Context, channelID, messageID string, emoji chat.Emoji, userID string) error {
	if err := c.waitReaction(ctx); err != nil {
		return err
	}
	return wrap(c.s.MessageReactionRemove(channelID, messageID, emoji.APIName(), userID, discordgo.WithContext(ctx)),
		"remove reaction %s of %s on %s", emoji.APIName(), userID, messageID)
}

// RemoveEmojiReactions implements chat.Reactor.
func (c *Client) RemoveEmojiReactions(ctx context.Context, channelID, messageID string, emoji chat.Emoji) error {
	if err := c.waitReaction(ctx); err != nil {
		return err
	}
	return wrap(c.s.MessageReactionsRemoveEmoji(channelID, messageID, emoji.APIName(), discordgo.WithContext(ctx)),
		"remove reactions %s on %s", emoji.APIName(), messageID)
}

// RemoveAllReactions implements chat.Reactor.
func (c *Client) RemoveAllReactions(ctx context.Context, channelID, messageID string) error {
	if err := c.waitReaction(ctx); err != nil {
		return err
	}
	return wrap(c.s.MessageReactionsRemoveAll(channelID, messageID, discordgo.WithContext(ctx)),
		"clear reactions on %s", messageID)
}

// Member implements chat.Directory. The state cache is tried first.
func (c *Client) Member(ctx context.Context, guildID, userID string) (*chat.Member, error) {
	if m, err := c.s.State.Member(guildID, userID); err == nil {
		return convertMember(guildID, m), nil
	}
	m, err := c.s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap(err, "fetch member %s", userID)
	}
	if err := c.s.State.MemberAdd(m); err != nil {
		logger.Debugf("[discord] cache member %s: %v", userID, err)
	}
	return convertMember(guildID, m), nil
}

// Members implements chat.Directory.
func (c *Client) Members(ctx context.Context, guildID string) ([]*chat.Member, error) {
	var (
		out   []*chat.Member
		after string
	)
	for {
		page, err := c.s.GuildMembers(guildID, after, membersPage, discordgo.WithContext(ctx))
		if err != nil {
			return nil, wrap(err, "list members of %s", guildID)
		}
		for _, m := range page {
			out = append(out, convertMember(guildID, m))
		}
		if len(page) < membersPage {
			return out, nil
		}
		after = page[len(page)-1].User.ID
	}
}

// HasPermission implements chat.Directory.
func (c *Client) HasPermission(ctx context.Context, channelID, userID string, perm chat.Permission) (bool, error) {
	perms, err := c.s.State.UserChannelPermissions(userID, channelID)
	if err != nil {
		perms, err = c.s.UserChannelPermissions(userID, channelID, discordgo.WithContext(ctx))
		if err != nil {
			return false, wrap(err, "permissions of %s in %s", userID, channelID)
		}
	}
	return chat.Permission(perms)&perm == perm, nil
}

// Channels implements chat.Directory. Only text channels are returned.
func (c *Client) Channels(ctx context.Context, guildID string) ([]chat.Channel, error) {
	chans, err := c.s.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap(err, "list channels of %s", guildID)
	}
	var out []chat.Channel
	for _, ch := range chans {
		if ch.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		out = append(out, chat.Channel{ID: ch.ID, GuildID: ch.GuildID, Name: ch.Name})
	}
	return out, nil
}

// GuildEmojis implements chat.Directory.
func (c *Client) GuildEmojis(ctx context.Context, guildID string) ([]chat.Emoji, error) {
	emojis, err := c.s.GuildEmojis(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap(err, "list emojis of %s", guildID)
	}
	out := make([]chat.Emoji, 0, len(emojis))
	for _, e := range emojis {
		out = append(out, chat.Emoji{ID: e.ID, Name: e.Name})
	}
	return out, nil
}

// CreateDM implements chat.DirectMessenger.
func (c *Client) CreateDM(ctx context.Context, userID string) (string, error) {
	ch, err := c.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", wrap(err, "open dm with %s", userID)
	}
	return ch.ID, nil
}

// user resolves a user from the state cache, falling back to REST.
func (c *Client) user(ctx context.Context, guildID, userID string) chat.User {
	if guildID != "" {
		if m, err := c.s.State.Member(guildID, userID); err == nil && m.User != nil {
			return convertUser(m.User)
		}
	}
	u, err := c.s.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		logger.Debugf("[discord] resolve user %s: %v", userID, err)
		return chat.User{ID: userID}
	}
	return convertUser(u)
}

var _ chat.Client = (*Client)(nil)
