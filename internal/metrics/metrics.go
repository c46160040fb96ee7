// Package metrics holds the bot's Prometheus collectors, registered on the
// default registry and served by the status server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommentsSeen = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "furbot_comments_total",
			Help: "Comments taken from the feed, by gate track",
		},
		[]string{"track"},
	)

	RepliesPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "furbot_replies_total",
			Help: "Replies posted, by kind (results, rejection, acknowledgment)",
		},
		[]string{"kind"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "furbot_search_duration_seconds",
			Help:    "Time spent answering a search, fallback included",
			Buckets: prometheus.DefBuckets,
		},
	)

	SearchFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "furbot_search_fallbacks_total",
			Help: "Searches that needed the unscored fallback query",
		},
	)

	LoopErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "furbot_loop_errors_total",
			Help: "Errors that sent the comment loop into backoff, by class",
		},
		[]string{"class"},
	)

	SweepRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "furbot_sweep_removed_total",
			Help: "Own comments removed for negative score",
		},
	)

	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "furbot_sweep_runs_total",
			Help: "Sweep runs, by outcome",
		},
		[]string{"outcome"},
	)
)
