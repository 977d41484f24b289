package scheduler

import "github.com/prometheus/client_golang/prometheus"

// metricsSet is the scheduler's prometheus instrumentation, one
// instance per Scheduler so multiple instances in the same process
// don't collide on registration.
type metricsSet struct {
	scheduled *prometheus.CounterVec
	promoted  prometheus.Counter
	droppedLate prometheus.Counter
	droppedBudget prometheus.Counter
	emitted   *prometheus.CounterVec
	queueDepth prometheus.GaugeFunc
}

func newMetricsSet(instanceID string, queueDepthFn func() float64) *metricsSet {
	labels := prometheus.Labels{"scheduler": instanceID}
	return &metricsSet{
		scheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "midisched",
			Name:        "events_admitted_total",
			Help:        "Events pushed into the admission buffer.",
			ConstLabels: labels,
		}, []string{"source"}),
		promoted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "midisched",
			Name:        "events_promoted_total",
			Help:        "Events moved from the admission buffer into the ready queue by the player while the queue was empty; promotions during smart-sleep are not counted.",
			ConstLabels: labels,
		}),
		droppedLate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "midisched",
			Name:        "events_dropped_late_total",
			Help:        "Events dropped because they arrived at the player past their budget window.",
			ConstLabels: labels,
		}),
		droppedBudget: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "midisched",
			Name:        "events_dropped_budget_total",
			Help:        "Events dropped at promotion by the player while the queue was empty because they were already inside the guard window; rejections during smart-sleep are not counted.",
			ConstLabels: labels,
		}),
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "midisched",
			Name:        "events_emitted_total",
			Help:        "Messages written to the sink, by kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		queueDepth: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "midisched",
			Name:        "queue_depth",
			Help:        "Current depth of the ready queue.",
			ConstLabels: labels,
		}, queueDepthFn),
	}
}

// RegisterMetrics adds the scheduler's prometheus collectors to reg
// (typically prometheus.DefaultRegisterer, wired from cmd/midisched's
// serve command).
func (s *Scheduler) RegisterMetrics(reg prometheus.Registerer) error {
	return s.metrics.Register(reg)
}

// Register adds every collector in the set to reg (typically
// prometheus.DefaultRegisterer, wired from cmd/midisched's serve
// command).
func (m *metricsSet) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.scheduled, m.promoted, m.droppedLate, m.droppedBudget, m.emitted, m.queueDepth} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
