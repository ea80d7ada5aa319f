// Package chattest provides an in-memory chat platform for tests.
package chattest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/ghetolay/WowBot/internal/chat"
)

// ErrNotFound is returned for unknown messages.
var ErrNotFound = errors.New("chattest: not found")

// Counters tallies mutating calls.
type Counters struct {
	Sends           int
	Edits           int
	Deletes         int
	ReactionAdds    int
	ReactionRemoves int
}

type message struct {
	msg       *chat.Message
	reactions []*reaction
}

type reaction struct {
	emoji chat.Emoji
	users []string
}

// Client is a goroutine-safe fake implementing chat.Client.
type Client struct {
	mu sync.Mutex

	self     chat.User
	nextID   int64
	channels map[string][]*message // oldest first
	guildOf  map[string]string
	members  map[string]map[string]*chat.Member
	perms    map[string]chat.Permission // channel/user
	emojis   map[string][]chat.Emoji
	chans    map[string][]chat.Channel

	counters Counters

	// EditErr, when set, is returned by EditEmbed.
	EditErr error
	// EditHook runs on every successful edit.
	EditHook func(channelID, messageID string, embed *chat.Embed)
}

// New creates a fake platform whose bot user has id selfID.
func New(selfID string) *Client {
	return &Client{
		self:     chat.User{ID: selfID, Username: "wowbot", Bot: true},
		nextID:   100000,
		channels: make(map[string][]*message),
		guildOf:  make(map[string]string),
		members:  make(map[string]map[string]*chat.Member),
		perms:    make(map[string]chat.Permission),
		emojis:   make(map[string][]chat.Emoji),
		chans:    make(map[string][]chat.Channel),
	}
}

// Self implements chat.Client.
func (c *Client) Self() chat.User { return c.self }

// AddChannel registers a guild text channel.
func (c *Client) AddChannel(guildID, channelID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guildOf[channelID] = guildID
	c.chans[guildID] = append(c.chans[guildID], chat.Channel{ID: channelID, GuildID: guildID, Name: name})
}

// AddMember registers a guild member.
func (c *Client) AddMember(guildID string, m chat.Member) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.members[guildID] == nil {
		c.members[guildID] = make(map[string]*chat.Member)
	}
	m.GuildID = guildID
	c.members[guildID][m.ID] = &m
}

// SetEmojis sets the custom emojis of a guild.
func (c *Client) SetEmojis(guildID string, emojis []chat.Emoji) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emojis[guildID] = emojis
}

// Grant gives userID perm in channelID.
func (c *Client) Grant(channelID, userID string, perm chat.Permission) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.perms[channelID+"/"+userID] |= perm
}

// Post appends a message authored by author without counting it as a send.
func (c *Client) Post(channelID string, author chat.User, content string, embed *chat.Embed) *chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.postLocked(channelID, author, content, embed).msg
}

// React records a reaction by userID without counting it as a bot mutation.
func (c *Client) React(channelID, messageID string, emoji chat.Emoji, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.findLocked(channelID, messageID)
	if err != nil {
		return err
	}
	m.addReaction(emoji, userID)
	return nil
}

// Snapshot returns the counters.
func (c *Client) Snapshot() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters
}

// History returns a copy of the channel messages, oldest first.
func (c *Client) History(channelID string) []*chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*chat.Message, 0, len(c.channels[channelID]))
	for _, m := range c.channels[channelID] {
		out = append(out, m.view(c.self.ID))
	}
	return out
}

// DMs returns the text of every DM sent to userID, in order.
func (c *Client) DMs(userID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, m := range c.channels[dmChannel(userID)] {
		if m.msg.Author.ID != c.self.ID {
			continue
		}
		if m.msg.Content != "" {
			out = append(out, m.msg.Content)
		}
		for _, e := range m.msg.Embeds {
			out = append(out, e.Title+"\n"+e.Description)
		}
	}
	return out
}

// Reactors returns the users who reacted with emoji.
func (c *Client) Reactors(channelID, messageID string, emoji chat.Emoji) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.findLocked(channelID, messageID)
	if err != nil {
		return nil
	}
	for _, r := range m.reactions {
		if r.emoji.Equal(emoji) {
			return append([]string(nil), r.users...)
		}
	}
	return nil
}

// DMChannel returns the DM channel id used for userID.
func DMChannel(userID string) string { return dmChannel(userID) }

func dmChannel(userID string) string { return "dm-" + userID }

func (c *Client) postLocked(channelID string, author chat.User, content string, embed *chat.Embed) *message {
	c.nextID++
	msg := &chat.Message{
		ID:        strconv.FormatInt(c.nextID, 10),
		ChannelID: channelID,
		GuildID:   c.guildOf[channelID],
		Author:    author,
		Content:   content,
		DM:        len(channelID) > 3 && channelID[:3] == "dm-",
	}
	if embed != nil {
		msg.Embeds = []*chat.Embed{embed.Clone()}
	}
	m := &message{msg: msg}
	c.channels[channelID] = append(c.channels[channelID], m)
	return m
}

func (c *Client) findLocked(channelID, messageID string) (*message, error) {
	for _, m := range c.channels[channelID] {
		if m.msg.ID == messageID {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: message %s in %s", ErrNotFound, messageID, channelID)
}

func (m *message) addReaction(emoji chat.Emoji, userID string) bool {
	for _, r := range m.reactions {
		if r.emoji.Equal(emoji) {
			for _, u := range r.users {
				if u == userID {
					return false
				}
			}
			r.users = append(r.users, userID)
			return true
		}
	}
	m.reactions = append(m.reactions, &reaction{emoji: emoji, users: []string{userID}})
	return true
}

func (m *message) view(selfID string) *chat.Message {
	cp := *m.msg
	cp.Embeds = nil
	for _, e := range m.msg.Embeds {
		cp.Embeds = append(cp.Embeds, e.Clone())
	}
	cp.Reactions = nil
	for _, r := range m.reactions {
		me := false
		for _, u := range r.users {
			if u == selfID {
				me = true
			}
		}
		cp.Reactions = append(cp.Reactions, chat.Reaction{Emoji: r.emoji, Count: len(r.users), Me: me})
	}
	return &cp
}

// Message implements chat.MessageReader.
func (c *Client) Message(_ context.Context, channelID, messageID string) (*chat.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.findLocked(channelID, messageID)
	if err != nil {
		return nil, err
	}
	return m.view(c.self.ID), nil
}

// Messages implements chat.MessageReader.
func (c *Client) Messages(_ context.Context, channelID string, limit int, before, after string) ([]*chat.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	all := c.channels[channelID]
	var out []*chat.Message
	if after != "" {
		for _, m := range all {
			if chat.CompareIDs(m.msg.ID, after) > 0 && len(out) < limit {
				out = append(out, m.view(c.self.ID))
			}
		}
		chat.SortNewestFirst(out)
		return out, nil
	}
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if before != "" && chat.CompareIDs(all[i].msg.ID, before) >= 0 {
			continue
		}
		out = append(out, all[i].view(c.self.ID))
	}
	return out, nil
}

// SendMessage implements chat.MessageWriter.
func (c *Client) SendMessage(_ context.Context, channelID, content string) (*chat.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters.Sends++
	return c.postLocked(channelID, c.self, content, nil).view(c.self.ID), nil
}

// SendEmbed implements chat.MessageWriter.
func (c *Client) SendEmbed(_ context.Context, channelID string, embed *chat.Embed) (*chat.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters.Sends++
	return c.postLocked(channelID, c.self, "", embed).view(c.self.ID), nil
}

// EditEmbed implements chat.MessageWriter.
func (c *Client) EditEmbed(_ context.Context, channelID, messageID string, embed *chat.Embed) (*chat.Message, error) {
	c.mu.Lock()
	if c.EditErr != nil {
		err := c.EditErr
		c.mu.Unlock()
		return nil, err
	}
	m, err := c.findLocked(channelID, messageID)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.counters.Edits++
	m.msg.Embeds = []*chat.Embed{embed.Clone()}
	view := m.view(c.self.ID)
	hook := c.EditHook
	c.mu.Unlock()

	if hook != nil {
		hook(channelID, messageID, embed.Clone())
	}
	return view, nil
}

// DeleteMessage implements chat.MessageWriter.
func (c *Client) DeleteMessage(_ context.Context, channelID, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.channels[channelID]
	for i, m := range msgs {
		if m.msg.ID == messageID {
			c.counters.Deletes++
			c.channels[channelID] = append(msgs[:i:i], msgs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: message %s in %s", ErrNotFound, messageID, channelID)
}

// AddReaction implements chat.Reactor.
func (c *Client) AddReaction(_ context.Context, channelID, messageID string, emoji chat.Emoji) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.findLocked(channelID, messageID)
	if err != nil {
		return err
	}
	if len(m.reactions) >= chat.MaxReactionsPerMessage {
		exists := false
		for _, r := range m.reactions {
			exists = exists || r.emoji.Equal(emoji)
		}
		if !exists {
			return fmt.Errorf("chattest: message %s has too many reactions", messageID)
		}
	}
	c.counters.ReactionAdds++
	m.addReaction(emoji, c.self.ID)
	return nil
}

// RemoveReaction implements chat.Reactor.
func (c *Client) RemoveReaction(_ context.Context, channelID, messageID string, emoji chat.Emoji, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.findLocked(channelID, messageID)
	if err != nil {
		return err
	}
	c.counters.ReactionRemoves++
	for i, r := range m.reactions {
		if !r.emoji.Equal(emoji) {
			continue
		}
		for j, u := range r.users {
			if u == userID {
				r.users = append(r.users[:j:j], r.users[j+1:]...)
				break
			}
		}
		if len(r.users) == 0 {
			m.reactions = append(m.reactions[:i:i], m.reactions[i+1:]...)
		}
		return nil
	}
	return nil
}

// RemoveEmojiReactions implements chat.Reactor.
func (c *Client) RemoveEmojiReactions(_ context.Context, channelID, messageID string, emoji chat.Emoji) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.findLocked(channelID, messageID)
	if err != nil {
		return err
	}
	c.counters.ReactionRemoves++
	for i, r := range m.reactions {
		if r.emoji.Equal(emoji) {
			m.reactions = append(m.reactions[:i:i], m.reactions[i+1:]...)
			return nil
		}
	}
	return nil
}

// RemoveAllReactions implements chat.Reactor.
func (c *Client) RemoveAllReactions(_ context.Context, channelID, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.findLocked(channelID, messageID)
	if err != nil {
		return err
	}
	c.counters.ReactionRemoves++
	m.reactions = nil
	return nil
}

// Member implements chat.Directory.
func (c *Client) Member(_ context.Context, guildID, userID string) (*chat.Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.members[guildID][userID]
	if !ok {
		return nil, fmt.Errorf("%w: member %s in %s", ErrNotFound, userID, guildID)
	}
	cp := *m
	return &cp, nil
}

// Members implements chat.Directory.
func (c *Client) Members(_ context.Context, guildID string) ([]*chat.Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*chat.Member
	for _, m := range c.members[guildID] {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

// HasPermission implements chat.Directory.
func (c *Client) HasPermission(_ context.Context, channelID, userID string, perm chat.Permission) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.perms[channelID+"/"+userID]&perm == perm, nil
}

// Channels implements chat.Directory.
func (c *Client) Channels(_ context.Context, guildID string) ([]chat.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Channel(nil), c.chans[guildID]...), nil
}

// GuildEmojis implements chat.Directory.
func (c *Client) GuildEmojis(_ context.Context, guildID string) ([]chat.Emoji, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Emoji(nil), c.emojis[guildID]...), nil
}

// CreateDM implements chat.DirectMessenger.
func (c *Client) CreateDM(_ context.Context, userID string) (string, error) {
	return dmChannel(userID), nil
}

var _ chat.Client = (*Client)(nil)
