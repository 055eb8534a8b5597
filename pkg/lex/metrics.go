package lex

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors a Parser reports to. A nil
// *Metrics records nothing.
type Metrics struct {
	parses      prometheus.Counter
	parseErrors prometheus.Counter
	callbacks   prometheus.Counter
	duration    prometheus.Histogram
}

// NewMetrics creates the parser collectors and registers them on reg.
// Collectors that are already registered are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		parses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lex",
			Name:      "parses_total",
			Help:      "Number of top-level parse calls.",
		}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lex",
			Name:      "parse_errors_total",
			Help:      "Number of top-level parse calls that returned an error.",
		}),
		callbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lex",
			Name:      "callback_dispatches_total",
			Help:      "Number of times a tag callback was invoked.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lex",
			Name:      "parse_duration_seconds",
			Help:      "Duration of top-level parse calls.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}

	if reg == nil {
		return m, nil
	}

	var err error
	m.parses, err = registerCounter(reg, m.parses)
	if err != nil {
		return nil, err
	}
	m.parseErrors, err = registerCounter(reg, m.parseErrors)
	if err != nil {
		return nil, err
	}
	m.callbacks, err = registerCounter(reg, m.callbacks)
	if err != nil {
		return nil, err
	}
	if err := reg.Register(m.duration); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		m.duration = are.ExistingCollector.(prometheus.Histogram)
	}
	return m, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(prometheus.Counter), nil
		}
		return nil, err
	}
	return c, nil
}

func (m *Metrics) observeParse(start time.Time, err error) {
	if m == nil {
		return
	}
	m.parses.Inc()
	if err != nil {
		m.parseErrors.Inc()
	}
	m.duration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeCallback() {
	if m == nil {
		return
	}
	m.callbacks.Inc()
}
