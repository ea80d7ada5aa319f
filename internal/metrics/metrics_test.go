package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Reaction("handled")
	m.Command("event", "ok")
	m.Render("ev", "live")
	m.HistoryPage()
	m.SessionStarted()
	m.SessionEnded()
	m.EntityTracked("rt", 1)
	m.ReactionMutation("add")
}

func TestCounters(t *testing.T) {
	m := New()
	m.Reaction("stripped")
	m.Reaction("stripped")
	m.Command("roster", "feedback")
	m.SessionStarted()

	require.Equal(t, 2.0, testutil.ToFloat64(m.reactions.WithLabelValues("stripped")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("roster", "feedback")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.sessions))

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
