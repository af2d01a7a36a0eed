package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"splitguard/internal/decision"
)

// Metrics with bounded cardinality: controller, action and cause are closed sets.
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "splitguard_tick_duration_seconds",
		Help:    "Time spent handling one tick across all controllers",
		Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.005},
	})

	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitguard_commands_total",
		Help: "Commands issued by the controllers",
	}, []string{"controller", "action", "cause"})

	resetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitguard_session_resets_total",
		Help: "Full controller resets",
	}, []string{"reason"}) // Bounded: "game_ended", "disconnect", "operator", "not_playable"

	activeProjectiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "splitguard_threat_projectiles",
		Help: "Hostile projectiles tracked by the threat detector",
	})

	threatCandidates = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "splitguard_threat_candidates",
		Help: "Threat candidates tracked by the threat detector",
	}, []string{"kind"})

	scheduledImpacts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "splitguard_scheduled_impacts",
		Help: "Projected impacts of the tracked own cast",
	})

	eventLogDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitguard_event_log_dropped_total",
		Help: "Events dropped due to rate limiting or buffer full",
	})
)

// RecordTick records tick timing for metrics
func RecordTick(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}

// RecordCommand counts one issued command.
func RecordCommand(rec decision.Record) {
	commandsTotal.WithLabelValues(rec.Controller, string(rec.Action), string(rec.Cause)).Inc()
}

// RecordReset counts one full reset.
func RecordReset(reason string) {
	resetsTotal.WithLabelValues(reason).Inc()
}

func updateGauges(st *Status) {
	activeProjectiles.Set(float64(st.Tranquil.ActiveProjectiles))
	threatCandidates.WithLabelValues("hero").Set(float64(st.Tranquil.HeroCandidates))
	threatCandidates.WithLabelValues("creep").Set(float64(st.Tranquil.CreepCandidates))
	scheduledImpacts.Set(float64(len(st.Khanda.Impacts)))
}
