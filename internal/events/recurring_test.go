package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecurrenceNext(t *testing.T) {
	r := Recurrence{Cron: "45 20 * * 3"}
	next, err := r.Next(clock)
	require.NoError(t, err)
	require.True(t, next.Equal(eventDate), next.String())

	after, err := r.Next(next)
	require.NoError(t, err)
	require.True(t, after.Equal(eventDate.AddDate(0, 0, 7)), after.String())

	_, err = Recurrence{Cron: "not a cron"}.Next(clock)
	require.Error(t, err)
}

func TestRecurrenceEnsure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := Recurrence{Cron: "45 20 * * 3", Description: "weekly", Icon: "1"}

	created, err := r.Ensure(ctx, h.env, channel, eventDate)
	require.NoError(t, err)
	require.True(t, created)

	created, err = r.Ensure(ctx, h.env, channel, eventDate)
	require.NoError(t, err)
	require.False(t, created)

	e, ok := h.env.Calendar.At(eventDate)
	require.True(t, ok)
	embed := h.embed(t, e)
	require.Equal(t, DefaultIcons[1], embed.Thumbnail)
	require.Equal(t, "weekly\n*3 days from now*", embed.Description)

	_, err = Recurrence{Cron: r.Cron, Roster: "nope"}.Ensure(ctx, h.env, channel, eventDate.AddDate(0, 0, 7))
	require.ErrorContains(t, err, "not found")
}

func TestSchedule(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.Error(t, Schedule(ctx, h.env, channel, Recurrence{Cron: "nope"}))

	// The next wednesday is inside the lead window, so it is posted at once.
	require.NoError(t, Schedule(ctx, h.env, channel, Recurrence{Cron: "45 20 * * 3", Lead: 7 * 24 * time.Hour}))
	require.Eventually(t, func() bool {
		_, ok := h.env.Calendar.At(eventDate)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}
