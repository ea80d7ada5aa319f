// Package chat defines the chat-platform capability surface the bot is
// written against. internal/discord implements it on top of the Discord API
// and chattest provides an in-memory fake.
package chat

import (
	"strings"
)

// Blank is a zero-width space: the content of placeholder messages and the
// filler for otherwise empty embed text.
const Blank = "​"

// MaxReactionsPerMessage is the platform cap on distinct reactions per message.
const MaxReactionsPerMessage = 20

// Emoji is either a unicode emoji (ID empty) or a custom guild emoji.
type Emoji struct {
	ID   string
	Name string
}

// Unicode returns a unicode emoji.
func Unicode(s string) Emoji { return Emoji{Name: s} }

// Custom reports whether the emoji is a guild emoji.
func (e Emoji) Custom() bool { return e.ID != "" }

// APIName is the form used in reaction endpoints.
func (e Emoji) APIName() string {
	if e.ID != "" {
		return e.Name + ":" + e.ID
	}
	return e.Name
}

// String is the form used inside message text.
func (e Emoji) String() string {
	if e.ID != "" {
		return "<:" + e.Name + ":" + e.ID + ">"
	}
	return e.Name
}

// Equal compares two emojis by id for custom emojis and by name otherwise.
func (e Emoji) Equal(o Emoji) bool {
	if e.ID != "" || o.ID != "" {
		return e.ID == o.ID
	}
	return e.Name == o.Name
}

// User is a platform account.
type User struct {
	ID       string
	Username string
	Bot      bool
}

// Mention renders a user mention.
func (u User) Mention() string { return "<@" + u.ID + ">" }

// Member is a user within a guild.
type Member struct {
	User
	GuildID string
	Nick    string
	Roles   []string
}

// HasRole reports whether the member holds roleID.
func (m Member) HasRole(roleID string) bool {
	for _, r := range m.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// DisplayName returns the nickname when set, otherwise the username.
func (m Member) DisplayName() string {
	if m.Nick != "" {
		return m.Nick
	}
	return m.Username
}

// Permission is a platform permission bit.
type Permission int64

const (
	// PermissionSendMessages allows posting messages in a channel.
	PermissionSendMessages Permission = 1 << 11
	// PermissionManageMessages allows deleting other users' messages.
	PermissionManageMessages Permission = 1 << 13
)

// Channel is a guild text channel.
type Channel struct {
	ID      string
	GuildID string
	Name    string
}

// Guild is a server the bot is a member of.
type Guild struct {
	ID   string
	Name string
}

// MessageRef identifies a message.
type MessageRef struct {
	GuildID   string
	ChannelID string
	MessageID string
}

// Link returns the permalink of the message.
func (r MessageRef) Link() string {
	guild := r.GuildID
	if guild == "" {
		guild = "@me"
	}
	return "https://discord.com/channels/" + guild + "/" + r.ChannelID + "/" + r.MessageID
}

// Reaction is one emoji on a message.
type Reaction struct {
	Emoji Emoji
	Count int
	// Me reports whether the bot itself reacted.
	Me bool
}

// Message is a posted message.
type Message struct {
	ID        string
	ChannelID string
	GuildID   string
	Author    User
	Content   string
	Embeds    []*Embed
	Reactions []Reaction
	// DM is true for messages in a direct-message channel.
	DM bool
}

// Ref returns the message reference.
func (m *Message) Ref() MessageRef {
	return MessageRef{GuildID: m.GuildID, ChannelID: m.ChannelID, MessageID: m.ID}
}

// FirstEmbed returns the first embed or nil.
func (m *Message) FirstEmbed() *Embed {
	if m == nil || len(m.Embeds) == 0 {
		return nil
	}
	return m.Embeds[0]
}

// IsPlaceholder reports whether the message only holds a blank line.
func (m *Message) IsPlaceholder() bool {
	return strings.TrimSpace(m.Content) == Blank && len(m.Embeds) == 0
}

// ReactionEvent is a reaction added to or removed from a message.
type ReactionEvent struct {
	Message MessageRef
	Emoji   Emoji
	User    User
	Removed bool
}
