package state

import "github.com/prometheus/client_golang/prometheus"

const (
	metricsNamespace = "statetree"
	metricsSubsystem = "state"
)

// Commit path label values.
const (
	pathDirect   = "direct"
	pathReplayed = "replayed"
)

// Metrics holds the owner's Prometheus instruments.
//
// All operations are thread-safe via Prometheus's internal locking.
type Metrics struct {
	// CommitsTotal counts installed commits.
	// Labels: path (direct, replayed)
	CommitsTotal *prometheus.CounterVec

	// ConflictsTotal counts commits rejected with a replay conflict.
	ConflictsTotal prometheus.Counter

	// RetriesTotal counts Update attempts restarted after a conflict.
	RetriesTotal prometheus.Counter

	// ActionsPerCommit observes the action log length of installed commits.
	ActionsPerCommit prometheus.Histogram

	// TreeNodes is the node count of the live tree, root included.
	TreeNodes prometheus.Gauge
}

// NewMetrics creates the instruments and registers them with reg. A nil
// reg leaves them unregistered, which is what most tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CommitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "commits_total",
				Help:      "Commits installed as the live tree, by reconciliation path",
			},
			[]string{"path"},
		),
		ConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "conflicts_total",
			Help:      "Commits rejected because the action log could not be replayed",
		}),
		RetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "retries_total",
			Help:      "Update attempts restarted from a fresh snapshot after a conflict",
		}),
		ActionsPerCommit: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "actions_per_commit",
			Help:      "Number of recorded actions in installed commits",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		}),
		TreeNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "tree_nodes",
			Help:      "Number of transforms in the live tree",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.CommitsTotal,
			m.ConflictsTotal,
			m.RetriesTotal,
			m.ActionsPerCommit,
			m.TreeNodes,
		)
	}
	return m
}
