// Package metrics holds the prometheus collectors of the bot.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wowbot"

// Metrics groups every collector.
type Metrics struct {
	Registry *prometheus.Registry

	reactions  *prometheus.CounterVec
	commands   *prometheus.CounterVec
	renders    *prometheus.CounterVec
	pages      prometheus.Counter
	sessions   prometheus.Gauge
	entities   *prometheus.GaugeVec
	reactCalls *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		reactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reactions_total",
			Help:      "Reaction events seen by the router, by outcome.",
		}, []string{"outcome"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands handled, by command and outcome.",
		}, []string{"command", "outcome"}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Entity renders, by entity type and path.",
		}, []string{"type", "path"}),
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_pages_total",
			Help:      "Channel history pages fetched while recovering entities.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dm_sessions_active",
			Help:      "Direct-message sessions currently running.",
		}),
		entities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entities_live",
			Help:      "Live dynamic-message entities, by type.",
		}, []string{"type"}),
		reactCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaction_mutations_total",
			Help:      "Reaction add/remove calls issued while reconciling, by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.reactions, m.commands, m.renders, m.pages, m.sessions, m.entities, m.reactCalls)
	return m
}

// Reaction counts a routed reaction. outcome is one of ignored, handled, stripped, failed.
func (m *Metrics) Reaction(outcome string) {
	if m == nil {
		return
	}
	m.reactions.WithLabelValues(outcome).Inc()
}

// Command counts a command. outcome is one of ok, feedback, failed.
func (m *Metrics) Command(name, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(name, outcome).Inc()
}

// Render counts a render of typeID through path (live, disconnected, error).
func (m *Metrics) Render(typeID, path string) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(typeID, path).Inc()
}

// HistoryPage counts a fetched history page.
func (m *Metrics) HistoryPage() {
	if m == nil {
		return
	}
	m.pages.Inc()
}

// SessionStarted increments the active DM session gauge.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// SessionEnded decrements the active DM session gauge.
func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

// EntityTracked adjusts the live entity gauge by delta.
func (m *Metrics) EntityTracked(typeID string, delta float64) {
	if m == nil {
		return
	}
	m.entities.WithLabelValues(typeID).Add(delta)
}

// ReactionMutation counts a reaction add or remove call.
func (m *Metrics) ReactionMutation(kind string) {
	if m == nil {
		return
	}
	m.reactCalls.WithLabelValues(kind).Inc()
}
