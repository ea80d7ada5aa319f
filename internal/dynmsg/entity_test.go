package dynmsg

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ghetolay/WowBot/internal/chat"
	"github.com/ghetolay/WowBot/internal/chat/chattest"
	"github.com/ghetolay/WowBot/internal/dispatch"
	"github.com/ghetolay/WowBot/internal/urlcodec"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	mu        sync.Mutex
	title     string
	counter   int
	generated atomic.Int32
	failWith  error
}

func (m *fakeModel) TypeID() string { return "tt" }

func (m *fakeModel) Generate(context.Context) (*chat.Embed, error) {
	m.generated.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	return &chat.Embed{
		Title:  m.title,
		Author: &chat.EmbedAuthor{Name: "Roster"},
		Footer: "stale footer",
	}, nil
}

func (m *fakeModel) Encode() ([]string, urlcodec.Params) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var p urlcodec.Params
	p.Add("n", fmt.Sprint(m.counter))
	return []string{m.title}, p
}

func (m *fakeModel) setFail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

var carol = chat.User{ID: "u-carol", Username: "carol"}

type fixture struct {
	client  *chattest.Client
	router  *dispatch.Router
	tracker *Tracker
	deps    Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := chattest.New("bot")
	client.AddChannel("g1", "c1", "roster")
	router := dispatch.NewRouter(client)
	tracker := NewTracker(nil)
	return &fixture{
		client:  client,
		router:  router,
		tracker: tracker,
		deps:    Deps{Client: client, Router: router, Tracker: tracker},
	}
}

func (f *fixture) entity(t *testing.T, model Model, extra int, opts ...Option) *Entity {
	t.Helper()
	msgs, err := Post(context.Background(), f.client, "c1", extra)
	require.NoError(t, err)
	return New(f.deps, model, "c1", msgs, opts...)
}

func (f *fixture) embed(t *testing.T, e *Entity) *chat.Embed {
	t.Helper()
	msg, err := f.client.Message(context.Background(), "c1", e.Messages()[0].ID)
	require.NoError(t, err)
	return msg.FirstEmbed()
}

func TestRender_Live(t *testing.T) {
	f := newFixture(t)
	model := &fakeModel{title: "Main"}
	e := f.entity(t, model, 0)

	_, err := e.Render(context.Background())
	require.NoError(t, err)

	embed := f.embed(t, e)
	require.Equal(t, "Main", embed.Title)
	require.Equal(t, ColorOpen, embed.Color)
	require.Empty(t, embed.Footer)
	require.Equal(t, "Roster", embed.Author.Name)

	id, typeID, ok := urlcodec.Match(embed.Author.URL)
	require.True(t, ok)
	require.Equal(t, e.ID(), id)
	require.Equal(t, "tt", typeID)

	data, err := urlcodec.Decode(embed.Author.URL)
	require.NoError(t, err)
	require.Equal(t, []string{"Main"}, data.Path)
	require.Equal(t, []string{"0"}, data.Params.Get("n"))
}

func TestRender_ErrorIsAbsorbing(t *testing.T) {
	f := newFixture(t)
	model := &fakeModel{title: "Main"}
	e := f.entity(t, model, 0)

	_, err := e.Render(context.Background())
	require.NoError(t, err)
	goodLink := f.embed(t, e).Author.URL

	model.setFail(errors.New("spec table missing"))
	_, err = e.Render(context.Background())
	require.ErrorContains(t, err, "spec table missing")
	require.Equal(t, StatusError, e.Status())

	embed := f.embed(t, e)
	require.Equal(t, ColorError, embed.Color)
	require.Contains(t, embed.Footer, "spec table missing")
	require.Equal(t, goodLink, embed.Author.URL)

	// Recovery of the model does not leave the error state.
	model.setFail(nil)
	model.mu.Lock()
	model.title = "Changed"
	model.mu.Unlock()
	calls := model.generated.Load()

	_, err = e.Render(context.Background())
	require.NoError(t, err)
	require.Equal(t, calls, model.generated.Load())
	require.False(t, e.SetStatus(StatusOpen))

	embed = f.embed(t, e)
	require.Equal(t, ColorError, embed.Color)
	require.Equal(t, goodLink, embed.Author.URL)
	require.Equal(t, "Main", embed.Title)

	e.ResetStatus(StatusOpen)
	_, err = e.Render(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Changed", f.embed(t, e).Title)
	require.Empty(t, e.Errors())
}

func TestRender_EditFailureFallsBackToErrorPath(t *testing.T) {
	f := newFixture(t)
	e := f.entity(t, &fakeModel{title: "x"}, 0)

	f.client.EditErr = errors.New("rate limited")
	_, err := e.Render(context.Background())
	require.Error(t, err)
	require.Equal(t, StatusError, e.Status())
	require.Len(t, e.Errors(), 1)
}

func TestDisconnect(t *testing.T) {
	f := newFixture(t)
	model := &fakeModel{title: "Main"}
	e := f.entity(t, model, 1)
	_, err := e.Render(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, f.tracker.Len())

	calls := model.generated.Load()
	require.NoError(t, e.Disconnect(context.Background()))

	require.Equal(t, StatusDisconnected, e.Status())
	require.Equal(t, calls, model.generated.Load())
	require.False(t, e.Attached())
	require.Zero(t, f.tracker.Len())
	for _, m := range e.Messages() {
		require.False(t, f.router.HasReactionListener(m.ID))
	}

	embed := f.embed(t, e)
	require.Equal(t, ColorDisconnected, embed.Color)
	require.Equal(t, "Main", embed.Title)

	// Second disconnect is a no-op.
	edits := f.client.Snapshot().Edits
	require.NoError(t, e.Disconnect(context.Background()))
	require.Equal(t, edits, f.client.Snapshot().Edits)
}

func emojis(n int) []Action {
	actions := make([]Action, n)
	for i := range actions {
		actions[i] = Toggle(chat.Unicode(fmt.Sprintf("e%02d", i)), nil)
	}
	return actions
}

func TestSetupReactions_Idempotent(t *testing.T) {
	f := newFixture(t)
	e := f.entity(t, &fakeModel{}, 0)
	head := e.Messages()[0]

	// A stray reaction that is not an action.
	require.NoError(t, f.client.React("c1", head.ID, chat.Unicode("🍕"), carol.ID))

	actions := emojis(5)
	require.NoError(t, e.SetupReactions(context.Background(), actions))
	first := f.client.Snapshot()
	require.Equal(t, 5, first.ReactionAdds)
	require.Equal(t, 1, first.ReactionRemoves)
	require.Empty(t, f.client.Reactors("c1", head.ID, chat.Unicode("🍕")))

	require.NoError(t, e.SetupReactions(context.Background(), actions))
	require.Equal(t, first, f.client.Snapshot())
	require.Len(t, e.Actions(), 5)
}

func TestSetupReactions_ReusesUserReaction(t *testing.T) {
	f := newFixture(t)
	e := f.entity(t, &fakeModel{}, 1)
	placeholder := e.Messages()[1]

	actions := emojis(2)
	require.NoError(t, f.client.React("c1", placeholder.ID, actions[0].Emoji, carol.ID))

	require.NoError(t, e.SetupReactions(context.Background(), actions))
	require.ElementsMatch(t, []string{carol.ID, "bot"}, f.client.Reactors("c1", placeholder.ID, actions[0].Emoji))
}

func TestSetupReactions_Capacity(t *testing.T) {
	f := newFixture(t)
	e := f.entity(t, &fakeModel{}, 1)

	err := e.SetupReactions(context.Background(), emojis(2*chat.MaxReactionsPerMessage+1))
	require.ErrorIs(t, err, ErrCapacity)
	require.Zero(t, f.client.Snapshot().ReactionAdds)

	require.NoError(t, e.SetupReactions(context.Background(), emojis(2*chat.MaxReactionsPerMessage)))
	for _, m := range f.client.History("c1") {
		require.Len(t, m.Reactions, chat.MaxReactionsPerMessage)
	}
}

func TestSetupReactions_Distribution(t *testing.T) {
	f := newFixture(t)
	e := f.entity(t, &fakeModel{}, 1)

	require.NoError(t, e.SetupReactions(context.Background(), emojis(27)))
	hist := f.client.History("c1")
	require.Len(t, hist[0].Reactions, 14)
	require.Len(t, hist[1].Reactions, 13)
	require.Equal(t, "e00", hist[0].Reactions[0].Emoji.Name)
	require.Equal(t, "e14", hist[1].Reactions[0].Emoji.Name)
}

func TestOnReaction(t *testing.T) {
	f := newFixture(t)
	model := &fakeModel{title: "x"}
	e := f.entity(t, model, 0)
	head := e.Messages()[0]

	var toggled, pressed, gated atomic.Int32
	actions := []Action{
		Toggle(chat.Unicode("🛋"), func(_ context.Context, ev chat.ReactionEvent) bool {
			toggled.Add(1)
			return false
		}),
		Button(chat.Unicode("👍"), func(context.Context, chat.ReactionEvent) bool {
			pressed.Add(1)
			return true
		}),
		Button(chat.Unicode("🛠️"), func(context.Context, chat.ReactionEvent) bool {
			gated.Add(1)
			return false
		}).WithPermission(chat.PermissionSendMessages),
	}
	require.NoError(t, e.SetupReactions(context.Background(), actions))

	react := func(emoji string, removed bool) {
		if !removed {
			require.NoError(t, f.client.React("c1", head.ID, chat.Unicode(emoji), carol.ID))
		}
		f.router.HandleReaction(context.Background(), chat.ReactionEvent{
			Message: head.Ref(), Emoji: chat.Unicode(emoji), User: carol, Removed: removed,
		})
	}

	react("🛋", false)
	react("🛋", true)
	require.EqualValues(t, 2, toggled.Load())
	require.Contains(t, f.client.Reactors("c1", head.ID, chat.Unicode("🛋")), carol.ID)

	edits := f.client.Snapshot().Edits
	react("👍", false)
	e.Wait()
	require.EqualValues(t, 1, pressed.Load())
	require.NotContains(t, f.client.Reactors("c1", head.ID, chat.Unicode("👍")), carol.ID)
	require.Equal(t, edits+1, f.client.Snapshot().Edits)

	react("👍", true)
	require.EqualValues(t, 1, pressed.Load())

	react("🛠️", false)
	require.Zero(t, gated.Load())
	require.Equal(t, []string{NoPrivilegesMessage}, f.client.DMs(carol.ID))
	require.NotContains(t, f.client.Reactors("c1", head.ID, chat.Unicode("🛠️")), carol.ID)

	f.client.Grant("c1", carol.ID, chat.PermissionSendMessages)
	react("🛠️", false)
	require.EqualValues(t, 1, gated.Load())

	// Unknown emoji is left alone.
	react("🍕", false)
	require.Contains(t, f.client.Reactors("c1", head.ID, chat.Unicode("🍕")), carol.ID)
}

func TestOnDeleted(t *testing.T) {
	f := newFixture(t)
	destroyed := make(chan struct{})
	e := f.entity(t, &fakeModel{}, 1, OnDestroy(func() { close(destroyed) }))
	_, err := e.Render(context.Background())
	require.NoError(t, err)

	head := e.Messages()[0]
	require.NoError(t, f.client.DeleteMessage(context.Background(), "c1", head.ID))
	f.router.HandleDelete(context.Background(), head.Ref())

	select {
	case <-destroyed:
	case <-time.After(time.Second):
		t.Fatal("destroy hook not called")
	}
	require.Zero(t, f.tracker.Len())
	require.Empty(t, f.client.History("c1"), "placeholders are removed with the entity")

	_, err = e.Render(context.Background())
	require.ErrorIs(t, err, ErrDeleted)
}

func TestStatusColorFallback(t *testing.T) {
	f := newFixture(t)
	e := f.entity(t, &fakeModel{}, 0)
	require.Equal(t, ColorError, e.statusColor(Status(42)))
	require.Equal(t, ColorClose, e.statusColor(StatusClose))
	require.Equal(t, ColorValidated, e.statusColor(StatusValidated))
}

type openOnlyColors struct{ fakeModel }

func (*openOnlyColors) StatusColor(s Status) (int, bool) {
	if s == StatusOpen {
		return 0x123456, true
	}
	return 0, false
}

func TestStatusColorOverride(t *testing.T) {
	f := newFixture(t)
	e := f.entity(t, &openOnlyColors{}, 0)
	require.Equal(t, 0x123456, e.statusColor(StatusOpen))
	require.Equal(t, ColorValidated, e.statusColor(StatusValidated))
	require.Equal(t, ColorClose, e.statusColor(StatusClose))
	require.Equal(t, ColorError, e.statusColor(Status(42)))
}

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{StatusOpen, StatusClose, StatusValidated, StatusDisconnected, StatusError} {
		got, ok := ParseStatus(s.String())
		require.True(t, ok)
		require.Equal(t, s, got)
	}
	_, ok := ParseStatus("nope")
	require.False(t, ok)
}
