package chat

import "context"

// MessageReader reads messages.
type MessageReader interface {
	Message(ctx context.Context, channelID, messageID string) (*Message, error)
	// Messages returns up to limit messages, newest first. before and after
	// are exclusive message-id cursors; empty means unbounded.
	Messages(ctx context.Context, channelID string, limit int, before, after string) ([]*Message, error)
}

// MessageWriter creates, edits and deletes messages.
type MessageWriter interface {
	SendMessage(ctx context.Context, channelID, content string) (*Message, error)
	SendEmbed(ctx context.Context, channelID string, embed *Embed) (*Message, error)
	EditEmbed(ctx context.Context, channelID, messageID string, embed *Embed) (*Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// Reactor mutates reactions.
type Reactor interface {
	AddReaction(ctx context.Context, channelID, messageID string, emoji Emoji) error
	RemoveReaction(ctx context.Context, channelID, messageID string, emoji Emoji, userID string) error
	RemoveEmojiReactions(ctx context.Context, channelID, messageID string, emoji Emoji) error
	RemoveAllReactions(ctx context.Context, channelID, messageID string) error
}

// Directory resolves users, members, guilds and permissions.
type Directory interface {
	Member(ctx context.Context, guildID, userID string) (*Member, error)
	Members(ctx context.Context, guildID string) ([]*Member, error)
	HasPermission(ctx context.Context, channelID, userID string, perm Permission) (bool, error)
	Channels(ctx context.Context, guildID string) ([]Channel, error)
	GuildEmojis(ctx context.Context, guildID string) ([]Emoji, error)
}

// DirectMessenger opens DM channels.
type DirectMessenger interface {
	CreateDM(ctx context.Context, userID string) (channelID string, err error)
}

// Client is the full capability surface.
type Client interface {
	Self() User
	MessageReader
	MessageWriter
	Reactor
	Directory
	DirectMessenger
}

// SendDM opens a DM channel with userID and posts content.
func SendDM(ctx context.Context, c interface {
	DirectMessenger
	MessageWriter
}, userID, content string) (*Message, error) {
	ch, err := c.CreateDM(ctx, userID)
	if err != nil {
		return nil, err
	}
	return c.SendMessage(ctx, ch, content)
}
