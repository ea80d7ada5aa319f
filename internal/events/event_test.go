package events

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ghetolay/WowBot/internal/chat"
	"github.com/ghetolay/WowBot/internal/chat/chattest"
	"github.com/ghetolay/WowBot/internal/dispatch"
	"github.com/ghetolay/WowBot/internal/dmsession"
	"github.com/ghetolay/WowBot/internal/dynmsg"
	"github.com/ghetolay/WowBot/internal/roster"
	"github.com/ghetolay/WowBot/internal/urlcodec"
	"github.com/ghetolay/WowBot/internal/wow"
	"github.com/stretchr/testify/require"
)

const channel = "c-ev"

var (
	clock     = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	eventDate = time.Date(2026, time.March, 4, 20, 45, 0, 0, time.UTC)
)

type stubRoster struct {
	mains map[string]wow.SpecID
}

func (s *stubRoster) ID() string   { return "r1" }
func (s *stubRoster) Name() string { return "Main" }
func (s *stubRoster) Link() string { return "https://discord.com/channels/g1/c-roster/r1" }
func (s *stubRoster) MainSpec(userID string) (wow.SpecID, bool) {
	id, ok := s.mains[userID]
	return id, ok
}
func (s *stubRoster) OffSpecs(string) []wow.SpecID { return nil }

type harness struct {
	client *chattest.Client
	router *dispatch.Router
	roster *stubRoster
	env    Env
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := chattest.New("bot")
	client.AddChannel("g1", channel, "calendar")
	client.AddMember("g1", chat.Member{User: chat.User{ID: "u1", Username: "tanky"}})
	client.AddMember("g1", chat.Member{User: chat.User{ID: "u2", Username: "newbie"}})
	client.AddMember("g1", chat.Member{User: chat.User{ID: "u3", Username: "healy"}, Nick: "Bamleprêtre"})
	client.AddMember("g1", chat.Member{User: chat.User{ID: "u4", Username: "wakfu"}})
	return restart(client, &stubRoster{mains: map[string]wow.SpecID{
		"u1": "dk_blood",
		"u3": "priest_heal",
		"u4": "mage_dps",
	}})
}

func restart(client *chattest.Client, r *stubRoster) *harness {
	router := dispatch.NewRouter(client)
	rosters := roster.NewRegistry()
	rosters.Set(r.ID(), r, true)

	opts := DefaultOptions()
	opts.Location = time.UTC
	opts.Now = func() time.Time { return clock }

	return &harness{
		client: client,
		router: router,
		roster: r,
		env: Env{
			Deps: dynmsg.Deps{
				Client:  client,
				Router:  router,
				Repo:    &dynmsg.HistoryRepository{Scanner: &dynmsg.Scanner{Reader: client, Writer: client, Self: client.Self()}},
				Tracker: dynmsg.NewTracker(nil),
			},
			Emojis:   wow.NewEmojis(nil),
			Rosters:  rosters,
			Calendar: NewCalendar(),
			Sessions: dmsession.NewRunner(client, router, nil),
			Options:  opts,
		},
	}
}

func (h *harness) create(t *testing.T) *Event {
	t.Helper()
	e, err := Create(context.Background(), h.env, channel, Data{Date: eventDate, RosterID: "r1"})
	require.NoError(t, err)
	e.Entity().Wait()
	return e
}

func (h *harness) embed(t *testing.T, e *Event) *chat.Embed {
	t.Helper()
	e.Entity().Wait()
	msg, err := h.client.Message(context.Background(), channel, e.Entity().Ref().MessageID)
	require.NoError(t, err)
	return msg.FirstEmbed()
}

func (h *harness) react(t *testing.T, e *Event, emoji chat.Emoji, userID string) {
	t.Helper()
	ref := e.Entity().Ref()
	require.NoError(t, h.client.React(channel, ref.MessageID, emoji, userID))
	h.router.HandleReaction(context.Background(), chat.ReactionEvent{Message: ref, Emoji: emoji, User: chat.User{ID: userID}})
}

func fieldByName(embed *chat.Embed, prefix string) (chat.EmbedField, bool) {
	for _, f := range embed.Fields {
		if strings.HasPrefix(f.Name, prefix) {
			return f, true
		}
	}
	return chat.EmbedField{}, false
}

func TestCreate(t *testing.T) {
	h := newHarness(t)
	e := h.create(t)

	require.Equal(t, "1772657100000", e.ID())
	msg, err := h.client.Message(context.Background(), channel, e.Entity().Ref().MessageID)
	require.NoError(t, err)
	require.Len(t, msg.Reactions, 5)

	embed := h.embed(t, e)
	require.Equal(t, "Mercredi 04 Mars 20h45", embed.Title)
	require.Equal(t, DefaultIcons[0], embed.Thumbnail)
	require.Equal(t, "*3 days from now*", embed.Description)
	require.Equal(t, dynmsg.ColorOpen, embed.Color)

	data, err := urlcodec.Decode(embed.Author.URL)
	require.NoError(t, err)
	require.Equal(t, urlcodec.Host(e.ID(), TypeID), data.ID)
	require.Equal(t, []string{"r1", "2-4-14", "", "open", DefaultIcons[0]}, data.Path)

	_, ok := h.env.Calendar.At(eventDate)
	require.True(t, ok)
}

func TestSignUpRoundTrip(t *testing.T) {
	h := newHarness(t)
	e := h.create(t)

	h.react(t, e, EmojiPresent, "u1")

	p, ok := e.Participant("u1")
	require.True(t, ok)
	require.Equal(t, Present, p.Status)
	require.Nil(t, p.Benchable)

	// Buttons are stripped.
	require.NotContains(t, h.client.Reactors(channel, e.Entity().Ref().MessageID, EmojiPresent), "u1")

	embed := h.embed(t, e)
	tanks, ok := fieldByName(embed, "__TANKS__")
	require.True(t, ok)
	require.Equal(t, "__TANKS__  (1)", tanks.Name)
	require.Contains(t, tanks.Value, "<@u1>")
	missing, ok := fieldByName(embed, "Missing")
	require.True(t, ok)
	require.Equal(t, "19", missing.Value)

	edits := h.client.Snapshot().Edits

	// A replayed sign-up changes nothing and does not render.
	changed, err := e.SetPlayerStatus("u1", Present)
	require.NoError(t, err)
	require.False(t, changed)
	h.react(t, e, EmojiPresent, "u1")
	e.Entity().Wait()
	require.Equal(t, edits, h.client.Snapshot().Edits)
}

func TestSignUpWithoutSpec(t *testing.T) {
	h := newHarness(t)
	e := h.create(t)

	h.react(t, e, EmojiPresent, "u2")

	_, ok := e.Participant("u2")
	require.False(t, ok)
	dms := h.client.DMs("u2")
	require.Len(t, dms, 1)
	require.True(t, strings.HasPrefix(dms[0], NoSpecMessage))
	require.Contains(t, dms[0], h.roster.Link())

	_, err := e.SetPlayerStatus("u2", Late)
	require.ErrorIs(t, err, ErrNoMainSpec)
}

func TestLateBenchAndAbsent(t *testing.T) {
	h := newHarness(t)
	e := h.create(t)

	h.react(t, e, EmojiLate, "u3")
	h.react(t, e, EmojiBench, "u3")
	h.react(t, e, EmojiAbsent, "u4")

	p, _ := e.Participant("u3")
	require.Equal(t, Late, p.Status)
	require.True(t, *p.Benchable)
	// The bench toggle is not a button.
	require.Contains(t, h.client.Reactors(channel, e.Entity().Ref().MessageID, EmojiBench), "u3")

	embed := h.embed(t, e)
	heals, _ := fieldByName(embed, "__HEALS__")
	require.Equal(t, "__HEALS__  (1)", heals.Name)
	require.Contains(t, heals.Value, "<@u3> ⏲ 🛋")

	last := embed.Fields[len(embed.Fields)-1]
	require.Equal(t, "**Absents (1)**"+EmQuad+"<@u4>\n**Bench (0)**"+EmQuad, last.Value)

	signed, _ := fieldByName(embed, "Signed up")
	require.Equal(t, "*__1__*", signed.Value)

	h.router.HandleReaction(context.Background(), chat.ReactionEvent{
		Message: e.Entity().Ref(), Emoji: EmojiBench, User: chat.User{ID: "u3"}, Removed: true,
	})
	p, _ = e.Participant("u3")
	require.False(t, *p.Benchable)
}

func TestConfigureRequiresPermission(t *testing.T) {
	h := newHarness(t)
	e := h.create(t)

	h.react(t, e, EmojiConfigure, "u1")
	require.Equal(t, []string{dynmsg.NoPrivilegesMessage}, h.client.DMs("u1"))
	require.False(t, h.env.Sessions.Active("u1"))
}

func TestLoad(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	old, err := urlcodec.Encode(urlcodec.Host("1771000000000", TypeID), []string{"r1", "2-4-14", "", "open", ""}, nil)
	require.NoError(t, err)
	h.client.Post(channel, h.client.Self(), "", &chat.Embed{Author: &chat.EmbedAuthor{URL: old}})

	e := h.create(t)
	_, err = e.SetPlayerStatus("u1", Present)
	require.NoError(t, err)
	e.SetDesc("raid night")
	_, err = e.Entity().Render(ctx)
	require.NoError(t, err)
	require.NoError(t, e.Disconnect(ctx))

	h2 := restart(h.client, h.roster)
	loaded, err := Load(ctx, h2.env, channel)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	require.Equal(t, e.ID(), got.ID())
	require.True(t, got.Date().Equal(eventDate))
	p, ok := got.Participant("u1")
	require.True(t, ok)
	require.Equal(t, Present, p.Status)

	embed := h2.embed(t, got)
	require.Equal(t, "raid night\n*3 days from now*", embed.Description)
	require.Equal(t, dynmsg.ColorOpen, embed.Color)

	msg, err := h.client.Message(ctx, channel, got.Entity().Ref().MessageID)
	require.NoError(t, err)
	require.Len(t, msg.Reactions, 5)
}

func TestLoad_MissingRoster(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	e := h.create(t)
	require.NoError(t, e.Disconnect(ctx))

	h2 := restart(h.client, h.roster)
	h2.env.Rosters = roster.NewRegistry()
	loaded, err := Load(ctx, h2.env, channel)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	require.Equal(t, dynmsg.StatusError, got.Entity().Status())
	embed := h2.embed(t, got)
	require.Equal(t, dynmsg.ColorError, embed.Color)
	require.Contains(t, embed.Footer, "can't find roster r1")
}

func TestClose(t *testing.T) {
	h := newHarness(t)
	e := h.create(t)

	require.NoError(t, e.Close(context.Background()))
	require.False(t, e.Entity().Attached())
	require.Equal(t, dynmsg.StatusClose, e.Entity().Status())

	msg, err := h.client.Message(context.Background(), channel, e.Entity().Ref().MessageID)
	require.NoError(t, err)
	require.Empty(t, msg.Reactions)
	require.Equal(t, dynmsg.ColorClose, msg.FirstEmbed().Color)

	data, err := urlcodec.Decode(msg.FirstEmbed().Author.URL)
	require.NoError(t, err)
	require.Equal(t, "closed", data.Path[3])

	_, ok := h.env.Calendar.At(eventDate)
	require.False(t, ok)
	require.NoError(t, e.Close(context.Background()))
}

func TestAutoClose(t *testing.T) {
	h := newHarness(t)
	h.env.Options.CloseDelay = time.Millisecond
	h.env.Options.Now = func() time.Time { return eventDate }

	e, err := Create(context.Background(), h.env, channel, Data{Date: eventDate, RosterID: "r1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return e.Entity().Status() == dynmsg.StatusClose && !e.Entity().Attached()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCancel(t *testing.T) {
	h := newHarness(t)
	e := h.create(t)

	require.NoError(t, e.Cancel(context.Background()))
	require.Empty(t, h.client.History(channel))
	require.Zero(t, h.env.Deps.Tracker.Len())
}
