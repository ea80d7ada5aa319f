package roster

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/ghetolay/WowBot/internal/chat"
	"github.com/ghetolay/WowBot/internal/chat/chattest"
	"github.com/ghetolay/WowBot/internal/dispatch"
	"github.com/ghetolay/WowBot/internal/dynmsg"
	"github.com/ghetolay/WowBot/internal/urlcodec"
	"github.com/ghetolay/WowBot/internal/wow"
	"github.com/stretchr/testify/require"
)

type harness struct {
	client *chattest.Client
	router *dispatch.Router
	env    Env
}

func specEmojis() []chat.Emoji {
	var out []chat.Emoji
	for i, s := range wow.All() {
		out = append(out, chat.Emoji{ID: fmt.Sprintf("9%03d", i), Name: s.EmojiName})
	}
	return out
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := chattest.New("bot")
	client.AddChannel("g1", "c-roster", "roster")
	client.AddMember("g1", chat.Member{User: chat.User{ID: "u1", Username: "tanky"}})
	client.AddMember("g1", chat.Member{User: chat.User{ID: "u2", Username: "healy"}, Nick: "Healy"})
	return restart(client)
}

// restart builds a fresh process state over the history of client.
func restart(client *chattest.Client) *harness {
	router := dispatch.NewRouter(client)
	scanner := &dynmsg.Scanner{Reader: client, Writer: client, Self: client.Self()}
	deps := dynmsg.Deps{
		Client:  client,
		Router:  router,
		Repo:    &dynmsg.HistoryRepository{Scanner: scanner},
		Tracker: dynmsg.NewTracker(nil),
	}
	return &harness{
		client: client,
		router: router,
		env:    Env{Deps: deps, Emojis: wow.NewEmojis(specEmojis()), Registry: NewRegistry()},
	}
}

func (h *harness) embed(t *testing.T, r *Roster) *chat.Embed {
	t.Helper()
	r.Entity().Wait()
	msg, err := h.client.Message(context.Background(), "c-roster", r.ID())
	require.NoError(t, err)
	return msg.FirstEmbed()
}

func TestEncodeDecode(t *testing.T) {
	var params urlcodec.Params
	params.Add("u3", "mage_dps", "priest_heal")
	params.Add("u1", "war_prot")

	title, data, isDefault, err := Decode([]string{"Main", "default"}, params)
	require.NoError(t, err)
	require.Equal(t, "Main", title)
	require.True(t, isDefault)
	require.Equal(t, wow.SpecID("mage_dps"), data.Specs("u3").Main)
	require.Equal(t, []wow.SpecID{"priest_heal"}, data.Specs("u3").Off)
	require.Equal(t, []string{"u3", "u1"}, data.Players())

	r := &Roster{title: title, data: data, isDefault: isDefault}
	path, encoded := r.Encode()
	require.Equal(t, []string{"Main", "default"}, path)
	require.Equal(t, params, encoded)

	_, _, _, err = Decode([]string{"x"}, urlcodec.Params{{Key: "u1", Values: []string{"bard"}}})
	require.ErrorContains(t, err, "unknown spec")
}

func TestCreate_ReactionsAndRender(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r, err := Create(ctx, h.env, "c-roster", "Main", false)
	require.NoError(t, err)

	hist := h.client.History("c-roster")
	require.Len(t, hist, 2)
	require.Len(t, hist[0].Reactions, 13)
	require.Len(t, hist[1].Reactions, 13)

	def, ok := h.env.Registry.Default()
	require.True(t, ok)
	require.Equal(t, r.ID(), def.ID())

	embed := h.embed(t, r)
	require.Equal(t, "Main", embed.Title)
	require.Equal(t, "Total: 0", embed.Fields[0].Name)

	tankSpec, _ := wow.Lookup("war_prot")
	tankEmoji, _ := h.env.Emojis.Spec(tankSpec)
	healSpec, _ := wow.Lookup("priest_heal")
	healEmoji, _ := h.env.Emojis.Spec(healSpec)

	h.router.HandleReaction(ctx, chat.ReactionEvent{Message: hist[1].Ref(), Emoji: tankEmoji, User: chat.User{ID: "u1"}})
	h.router.HandleReaction(ctx, chat.ReactionEvent{Message: hist[1].Ref(), Emoji: healEmoji, User: chat.User{ID: "u2"}})
	h.router.HandleReaction(ctx, chat.ReactionEvent{Message: hist[1].Ref(), Emoji: tankEmoji, User: chat.User{ID: "u2"}})

	main, ok := r.MainSpec("u2")
	require.True(t, ok)
	require.Equal(t, wow.SpecID("priest_heal"), main)
	require.Equal(t, []wow.SpecID{"war_prot"}, r.OffSpecs("u2"))

	embed = h.embed(t, r)
	require.Equal(t, "Total: 2", embed.Fields[0].Name)

	require.Equal(t, "__TANKS:__  (1)", embed.Fields[1].Name)
	require.Contains(t, embed.Fields[1].Value, "<@u1>")
	require.Contains(t, embed.Fields[4].Value, "Healy")
	require.Equal(t, "__HEALS:__  (1)", embed.Fields[7].Name)

	data, err := urlcodec.Decode(embed.Author.URL)
	require.NoError(t, err)
	require.Equal(t, []string{"priest_heal", "war_prot"}, data.Params.Get("u2"))

	// Removing the main promotes the off-spec.
	h.router.HandleReaction(ctx, chat.ReactionEvent{Message: hist[1].Ref(), Emoji: healEmoji, User: chat.User{ID: "u2"}, Removed: true})
	main, _ = r.MainSpec("u2")
	require.Equal(t, wow.SpecID("war_prot"), main)
}

func TestLoad(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r, err := Create(ctx, h.env, "c-roster", "Main", true)
	require.NoError(t, err)
	r.AddSpec("u1", "dk_blood")
	_, err = r.Entity().Render(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Entity().Disconnect(ctx))

	h2 := restart(h.client)

	loaded, err := Load(ctx, h2.env, "c-roster", nil)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	got := loaded[0]
	require.Equal(t, r.ID(), got.ID())
	require.Equal(t, "Main", got.Name())
	main, ok := got.MainSpec("u1")
	require.True(t, ok)
	require.Equal(t, wow.SpecID("dk_blood"), main)
	require.Len(t, got.Entity().Messages(), 2)
	require.Equal(t, got.ID(), h2.env.Registry.DefaultID())

	embed := h2.embed(t, got)
	require.Equal(t, dynmsg.ColorOpen, embed.Color)
}

func TestLoad_MarksUndecodable(t *testing.T) {
	h := newHarness(t)
	link, err := urlcodec.Encode(urlcodec.Host("1", TypeID), []string{"Broken"}, urlcodec.Params{{Key: "u1", Values: []string{"bard"}}})
	require.NoError(t, err)
	msg := h.client.Post("c-roster", h.client.Self(), "", &chat.Embed{Author: &chat.EmbedAuthor{URL: link}})

	loaded, err := Load(context.Background(), h.env, "c-roster", nil)
	require.NoError(t, err)
	require.Empty(t, loaded)

	got, err := h.client.Message(context.Background(), "c-roster", msg.ID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(got.FirstEmbed().Footer, "error loading roster message"))
	require.Equal(t, link, got.FirstEmbed().Author.URL)
}

func TestDestroyRemovesFromRegistry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r, err := Create(ctx, h.env, "c-roster", "Main", false)
	require.NoError(t, err)
	r.Entity().Wait()

	require.NoError(t, h.client.DeleteMessage(ctx, "c-roster", r.ID()))
	h.router.HandleDelete(ctx, r.Entity().Ref())

	_, ok := h.env.Registry.ByName("Main")
	require.False(t, ok)
}

func TestCommand(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.router.RegisterCommand(CommandName, Command(func(string) (Env, string, bool) {
		return h.env, "c-roster", true
	}))

	author := chat.User{ID: "u1"}
	h.router.HandleMessage(ctx, h.client.Post("c-roster", author, "!roster", nil))
	require.Equal(t, []string{"no title found"}, h.client.DMs("u1"))

	h.router.HandleMessage(ctx, h.client.Post("c-roster", author, `!roster "Raid team"`, nil))
	first, ok := h.env.Registry.ByName("Raid team")
	require.True(t, ok)

	h.router.HandleMessage(ctx, h.client.Post("c-roster", author, "!roster Alts default", nil))
	alts, ok := h.env.Registry.ByName("Alts")
	require.True(t, ok)
	require.Equal(t, alts.ID(), h.env.Registry.DefaultID())
	require.NotEqual(t, first.ID(), h.env.Registry.DefaultID())

	h.router.HandleMessage(ctx, h.client.Post("c-roster", author, "!roster Alts", nil))
	require.Contains(t, h.client.DMs("u1")[1], "already exists")
}
