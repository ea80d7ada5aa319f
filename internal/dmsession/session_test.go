package dmsession

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ghetolay/WowBot/internal/chat"
	"github.com/ghetolay/WowBot/internal/chat/chattest"
	"github.com/ghetolay/WowBot/internal/dispatch"
	"github.com/stretchr/testify/require"
)

var bob = chat.User{ID: "u-bob", Username: "bob"}

// scriptedInbox delivers queued messages in order.
type scriptedInbox struct {
	ch chan *chat.Message
}

func newInbox(lines ...string) *scriptedInbox {
	in := &scriptedInbox{ch: make(chan *chat.Message, len(lines)+1)}
	for _, l := range lines {
		in.ch <- &chat.Message{ChannelID: chattest.DMChannel(bob.ID), Author: bob, Content: l, DM: true}
	}
	return in
}

func (in *scriptedInbox) Await(ctx context.Context, _ string, accept func(*chat.Message) bool) (*chat.Message, error) {
	for {
		select {
		case m := <-in.ch:
			if accept(m) {
				return m, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func echoConfig() Config {
	return Config{
		Welcome:     "Configure your event",
		IdleTimeout: 50 * time.Millisecond,
		Commands: map[string]Command{
			"echo": {
				Description: "repeat arguments",
				Help:        "echo <words...>",
				Run: func(_ context.Context, call Call) ([]Reply, error) {
					return []Reply{Text("1:%s", strings.Join(call.Args, " ")), Text("2:%s", call.Name)}, nil
				},
			},
			"picky": {
				Description: "rejects everything",
				Run: func(context.Context, Call) ([]Reply, error) {
					return nil, dispatch.Feedbackf("no thanks")
				},
			},
			"crash": {
				Description: "fails",
				Run: func(context.Context, Call) ([]Reply, error) {
					return nil, errors.New("kaboom")
				},
			},
		},
	}
}

func run(t *testing.T, inbox Inbox, cfg Config) ([]string, error) {
	t.Helper()
	client := chattest.New("bot")
	r := NewRunner(client, inbox, nil)
	err := r.Run(context.Background(), bob, cfg)
	return client.DMs(bob.ID), err
}

func TestRun_ExitCommand(t *testing.T) {
	dms, err := run(t, newInbox("fu"), echoConfig())
	require.NoError(t, err)
	require.Len(t, dms, 3)
	require.Contains(t, dms[0], "Configure your event")
	require.Contains(t, dms[0], "`echo`: repeat arguments")
	require.Contains(t, dms[0], "`help <command>`")
	require.Contains(t, dms[0], "`fu`")
	require.Equal(t, DefaultExitMessage, dms[1])
	require.Equal(t, EndedMessage, dms[2])
}

func TestRun_UnknownCommand(t *testing.T) {
	dms, err := run(t, newInbox("nope", "fu"), echoConfig())
	require.NoError(t, err)
	require.Equal(t, []string{NotFoundMessage, DefaultExitMessage, EndedMessage}, dms[1:])
}

func TestRun_IdleTimeoutEndsSession(t *testing.T) {
	start := time.Now()
	dms, err := run(t, newInbox(), echoConfig())
	require.NoError(t, err)
	require.Len(t, dms, 2)
	require.Equal(t, EndedMessage, dms[1])
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestRun_LinesAndOrderedFeedback(t *testing.T) {
	dms, err := run(t, newInbox("echo a b\n\n  ECHO   c  \nfu"), echoConfig())
	require.NoError(t, err)
	require.Equal(t, []string{"1:a b", "2:echo", "1:c", "2:echo", DefaultExitMessage, EndedMessage}, dms[1:])
}

func TestRun_FeedbackErrorKeepsSession(t *testing.T) {
	dms, err := run(t, newInbox("picky", "echo ok", "fu"), echoConfig())
	require.NoError(t, err)
	require.Equal(t, []string{"no thanks", "1:ok", "2:echo", DefaultExitMessage, EndedMessage}, dms[1:])
}

func TestRun_FailureEndsSession(t *testing.T) {
	dms, err := run(t, newInbox("crash", "echo never"), echoConfig())
	require.ErrorContains(t, err, "kaboom")
	require.Equal(t, []string{EndedMessage}, dms[1:])
}

func TestRun_Help(t *testing.T) {
	dms, err := run(t, newInbox("help echo", "help missing", "help", "fu"), echoConfig())
	require.NoError(t, err)
	require.Equal(t, "echo <words...>", dms[1])
	require.Equal(t, NotFoundMessage, dms[2])
	require.Contains(t, dms[3], "`picky`: rejects everything")
}

func TestRun_CustomExit(t *testing.T) {
	cfg := echoConfig()
	cfg.ExitCommand = "quit"
	cfg.ExitMessage = "later"
	dms, err := run(t, newInbox("fu", "quit"), cfg)
	require.NoError(t, err)
	require.Equal(t, []string{NotFoundMessage, "later", EndedMessage}, dms[1:])
}

func TestRun_OneSessionPerUser(t *testing.T) {
	client := chattest.New("bot")
	inbox := newInbox()
	r := NewRunner(client, inbox, nil)

	cfg := echoConfig()
	cfg.IdleTimeout = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, bob, cfg) }()

	require.Eventually(t, func() bool { return r.Active(bob.ID) }, time.Second, 5*time.Millisecond)

	err := r.Run(context.Background(), bob, cfg)
	require.ErrorIs(t, err, ErrSessionActive)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.False(t, r.Active(bob.ID))

	dms := client.DMs(bob.ID)
	require.Equal(t, EndedMessage, dms[len(dms)-1])
	require.Contains(t, dms, ActiveMessage)
}

func TestRun_RunnerDefaults(t *testing.T) {
	client := chattest.New("bot")
	r := NewRunner(client, newInbox("fu", "stop"), nil)
	r.Defaults = Config{ExitCommand: "stop", ExitMessage: "see you"}

	cfg := echoConfig()
	require.NoError(t, r.Run(context.Background(), bob, cfg))
	require.Equal(t, []string{NotFoundMessage, "see you", EndedMessage}, client.DMs(bob.ID)[1:])
}
