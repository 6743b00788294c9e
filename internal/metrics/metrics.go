// Package metrics holds the Prometheus collectors for games and tournaments.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "arena"

type Metrics struct {
	movesApplied     *prometheus.CounterVec
	invalidMoves     *prometheus.CounterVec
	gamesFinished    *prometheus.CounterVec
	moveLatency      prometheus.Histogram
	matchesCompleted *prometheus.CounterVec
	tournaments      *prometheus.CounterVec
	subscribers      *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		movesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_applied_total",
			Help:      "Legal moves applied, by color.",
		}, []string{"color"}),
		invalidMoves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_moves_total",
			Help:      "Rejected move attempts, by error kind.",
		}, []string{"kind"}),
		gamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Finished games, by termination reason.",
		}, []string{"reason"}),
		moveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "move_request_seconds",
			Help:      "Time spent waiting for a player to propose a move.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		matchesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_completed_total",
			Help:      "Decided matches, by how they were decided.",
		}, []string{"decided_by"}),
		tournaments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tournaments_total",
			Help:      "Tournament runs, by final status.",
		}, []string{"status"}),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Live event stream subscribers, by scope.",
		}, []string{"scope"}),
	}
	reg.MustRegister(
		m.movesApplied,
		m.invalidMoves,
		m.gamesFinished,
		m.moveLatency,
		m.matchesCompleted,
		m.tournaments,
		m.subscribers,
	)
	return m
}

func (m *Metrics) MoveApplied(color string) {
	if m == nil {
		return
	}
	m.movesApplied.WithLabelValues(color).Inc()
}

func (m *Metrics) InvalidMove(kind string) {
	if m == nil {
		return
	}
	m.invalidMoves.WithLabelValues(kind).Inc()
}

func (m *Metrics) GameFinished(reason string) {
	if m == nil {
		return
	}
	m.gamesFinished.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveMoveRequest(d time.Duration) {
	if m == nil {
		return
	}
	m.moveLatency.Observe(d.Seconds())
}

// MatchCompleted records how a match was decided: "game", "bye", "coin_flip" or "seed".
func (m *Metrics) MatchCompleted(decidedBy string) {
	if m == nil {
		return
	}
	m.matchesCompleted.WithLabelValues(decidedBy).Inc()
}

func (m *Metrics) TournamentFinished(status string) {
	if m == nil {
		return
	}
	m.tournaments.WithLabelValues(status).Inc()
}

func (m *Metrics) SubscriberAdded(scope string) {
	if m == nil {
		return
	}
	m.subscribers.WithLabelValues(scope).Inc()
}

func (m *Metrics) SubscriberRemoved(scope string) {
	if m == nil {
		return
	}
	m.subscribers.WithLabelValues(scope).Dec()
}
