package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus instruments. A nil *Metrics is
// valid and records nothing, so the engine never branches on whether
// metrics were configured.
type Metrics struct {
	rulesEvaluated *prometheus.CounterVec
	rulesSkipped   *prometheus.CounterVec
	ruleFailures   *prometheus.CounterVec
	batchesBlocked prometheus.Counter
	parseDropped   prometheus.Counter
	loadsTotal     *prometheus.CounterVec
}

// NewMetrics registers the engine's instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		rulesEvaluated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ucr",
			Subsystem: "engine",
			Name:      "rules_evaluated_total",
			Help:      "Rules whose action was executed, by rule type.",
		}, []string{"rule_type"}),
		rulesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ucr",
			Subsystem: "engine",
			Name:      "rules_skipped_total",
			Help:      "Rules skipped because their condition was not met, by rule type.",
		}, []string{"rule_type"}),
		ruleFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ucr",
			Subsystem: "engine",
			Name:      "rule_failures_total",
			Help:      "Rule executions that produced a failed result, by rule type.",
		}, []string{"rule_type"}),
		batchesBlocked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ucr",
			Subsystem: "engine",
			Name:      "batches_blocked_total",
			Help:      "Batches short-circuited by a blocking rule failure.",
		}),
		parseDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ucr",
			Subsystem: "engine",
			Name:      "rules_parse_dropped_total",
			Help:      "Stored rules dropped at load time because they failed to parse.",
		}),
		loadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ucr",
			Subsystem: "engine",
			Name:      "loads_total",
			Help:      "Rule cache loads, by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ruleEvaluated(ruleType string) {
	if m == nil {
		return
	}
	m.rulesEvaluated.WithLabelValues(ruleType).Inc()
}

func (m *Metrics) ruleSkipped(ruleType string) {
	if m == nil {
		return
	}
	m.rulesSkipped.WithLabelValues(ruleType).Inc()
}

func (m *Metrics) ruleFailed(ruleType string) {
	if m == nil {
		return
	}
	m.ruleFailures.WithLabelValues(ruleType).Inc()
}

func (m *Metrics) batchBlocked() {
	if m == nil {
		return
	}
	m.batchesBlocked.Inc()
}

func (m *Metrics) ruleParseDropped() {
	if m == nil {
		return
	}
	m.parseDropped.Inc()
}

func (m *Metrics) loadFinished(outcome string) {
	if m == nil {
		return
	}
	m.loadsTotal.WithLabelValues(outcome).Inc()
}
