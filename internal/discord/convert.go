package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/ghetolay/WowBot/internal/chat"
)

func convertUser(u *discordgo.User) chat.User {
	if u == nil {
		return chat.User{}
	}
	return chat.User{ID: u.ID, Username: u.Username, Bot: u.Bot}
}

func convertMember(guildID string, m *discordgo.Member) *chat.Member {
	out := &chat.Member{
		User:    convertUser(m.User),
		GuildID: m.GuildID,
		Nick:    m.Nick,
		Roles:   append([]string(nil), m.Roles...),
	}
	if out.GuildID == "" {
		out.GuildID = guildID
	}
	return out
}

func convertEmoji(e *discordgo.Emoji) chat.Emoji {
	if e == nil {
		return chat.Emoji{}
	}
	return chat.Emoji{ID: e.ID, Name: e.Name}
}

func convertMessage(m *discordgo.Message) *chat.Message {
	out := &chat.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Author:    convertUser(m.Author),
		Content:   m.Content,
		DM:        m.GuildID == "",
	}
	for _, e := range m.Embeds {
		out.Embeds = append(out.Embeds, fromEmbed(e))
	}
	for _, r := range m.Reactions {
		if r == nil {
			continue
		}
		out.Reactions = append(out.Reactions, chat.Reaction{Emoji: convertEmoji(r.Emoji), Count: r.Count, Me: r.Me})
	}
	return out
}

func fromEmbed(e *discordgo.MessageEmbed) *chat.Embed {
	out := &chat.Embed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if e.Thumbnail != nil {
		out.Thumbnail = e.Thumbnail.URL
	}
	if e.Author != nil {
		out.Author = &chat.EmbedAuthor{Name: e.Author.Name, IconURL: e.Author.IconURL, URL: e.Author.URL}
	}
	if e.Footer != nil {
		out.Footer = e.Footer.Text
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, chat.EmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return out
}

func toEmbed(e *chat.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Type:        discordgo.EmbedTypeRich,
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if e.Thumbnail != "" {
		out.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.Thumbnail}
	}
	if e.Author != nil {
		out.Author = &discordgo.MessageEmbedAuthor{Name: e.Author.Name, IconURL: e.Author.IconURL, URL: e.Author.URL}
	}
	if e.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return out
}

func convertReaction(r *discordgo.MessageReaction, user chat.User, removed bool) chat.ReactionEvent {
	return chat.ReactionEvent{
		Message: chat.MessageRef{GuildID: r.GuildID, ChannelID: r.ChannelID, MessageID: r.MessageID},
		Emoji:   chat.Emoji{ID: r.Emoji.ID, Name: r.Emoji.Name},
		User:    user,
		Removed: removed,
	}
}
