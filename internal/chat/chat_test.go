package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmoji(t *testing.T) {
	thumb := Unicode("👍")
	custom := Emoji{ID: "111", Name: "mage"}

	require.Equal(t, "👍", thumb.APIName())
	require.Equal(t, "mage:111", custom.APIName())
	require.Equal(t, "<:mage:111>", custom.String())
	require.True(t, custom.Equal(Emoji{ID: "111", Name: "renamed"}))
	require.False(t, custom.Equal(Unicode("mage")))
	require.True(t, thumb.Equal(Unicode("👍")))
}

func TestCompareIDs(t *testing.T) {
	require.Equal(t, -1, CompareIDs("99", "100"))
	require.Equal(t, 1, CompareIDs("200", "199"))
	require.Equal(t, 0, CompareIDs("5", "5"))

	msgs := []*Message{{ID: "10"}, {ID: "9"}, {ID: "11"}}
	SortOldestFirst(msgs)
	require.Equal(t, "9", msgs[0].ID)
	require.Equal(t, "11", msgs[2].ID)
	SortNewestFirst(msgs)
	require.Equal(t, "11", msgs[0].ID)
}

func TestMessageHelpers(t *testing.T) {
	m := &Message{ID: "3", ChannelID: "2", GuildID: "1", Content: Blank}
	require.True(t, m.IsPlaceholder())
	require.Equal(t, "https://discord.com/channels/1/2/3", m.Ref().Link())
	require.Nil(t, m.FirstEmbed())

	m.Embeds = []*Embed{{Title: "x"}}
	require.False(t, m.IsPlaceholder())

	e := (&Embed{Author: &EmbedAuthor{URL: "u"}}).AddField("a", "b", true)
	c := e.Clone()
	c.Author.URL = "changed"
	c.Fields[0].Name = "changed"
	require.Equal(t, "u", e.AuthorURL())
	require.Equal(t, "a", e.Fields[0].Name)
}
