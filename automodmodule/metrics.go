package automodmodule

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messagesEvaluated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_messages_evaluated_total",
	Help: "Number of messages run through the automod rules",
})

var evaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "automod_evaluation_duration_sec",
	Help:    "Time spent evaluating a message against all rules",
	Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
})

var violationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_violations_total",
	Help: "Number of messages that broke a rule, by rule",
}, []string{"rule"})

var actionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_action_failures_total",
	Help: "Number of enforcement steps that failed, by action",
}, []string{"action"})

var rateStoreErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_rate_store_errors_total",
	Help: "Number of rate store failures, which skip the spam rule",
})
