package middleware

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	tele "gopkg.in/telebot.v4"
)

// Metrics holds the update pipeline collectors.
type Metrics struct {
	Updates  *prometheus.CounterVec
	Handled  *prometheus.HistogramVec
	Limited  *prometheus.CounterVec
	Panics   prometheus.Counter
	Messages prometheus.Counter
}

var activeMetrics atomic.Pointer[Metrics]

// RegisterMetrics creates the pipeline collectors on reg and makes them the
// active set. A nil reg yields working but unregistered collectors.
func RegisterMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		Updates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatebot",
			Subsystem: "tg",
			Name:      "updates_total",
			Help:      "Updates received by kind.",
		}, []string{"kind"}),
		Handled: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gatebot",
			Subsystem: "tg",
			Name:      "handler_duration_seconds",
			Help:      "Handler latency by handler and outcome.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"handler", "outcome"}),
		Limited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatebot",
			Subsystem: "tg",
			Name:      "rate_limited_total",
			Help:      "Updates dropped by the rate limiter.",
		}, []string{"kind"}),
		Panics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gatebot",
			Subsystem: "tg",
			Name:      "handler_panics_total",
			Help:      "Recovered handler panics.",
		}),
		Messages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gatebot",
			Subsystem: "tg",
			Name:      "replies_total",
			Help:      "Messages sent or edited in reply to updates.",
		}),
	}
	activeMetrics.Store(m)
	return m
}

// ObserveHandler records one handled update.
func ObserveHandler(handler, outcome string, took time.Duration) {
	if m := activeMetrics.Load(); m != nil {
		m.Handled.WithLabelValues(handler, outcome).Observe(took.Seconds())
	}
}

func observeLimited(kind string) {
	if m := activeMetrics.Load(); m != nil {
		m.Limited.WithLabelValues(kind).Inc()
	}
}

func observePanic() {
	if m := activeMetrics.Load(); m != nil {
		m.Panics.Inc()
	}
}

// metricsContext wraps tele.Context to count sent messages and detect keyboard usage.
type metricsContext struct{ tele.Context }

func (m metricsContext) incMessages(hasKB bool) {
	n := 0
	if v := m.Get("messages"); v != nil {
		if nv, ok := v.(int); ok {
			n = nv
		}
	}
	m.Set("messages", n+1)
	if hasKB {
		m.Set("kb", true)
	}
	if am := activeMetrics.Load(); am != nil {
		am.Messages.Inc()
	}
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// Send proxies tele.Context.Send while updating message counters.
func (m metricsContext) Send(what interface{}, opts ...interface{}) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.incMessages(hasKeyboard(opts))
	}
	return err
}

// Reply proxies tele.Context.Reply while updating message counters.
func (m metricsContext) Reply(what interface{}, opts ...interface{}) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		m.incMessages(hasKeyboard(opts))
	}
	return err
}

// Edit proxies tele.Context.Edit while updating message counters.
func (m metricsContext) Edit(what interface{}, opts ...interface{}) error {
	err := m.Context.Edit(what, opts...)
	if err == nil {
		m.incMessages(hasKeyboard(opts))
	}
	return err
}

// EditOrSend proxies tele.Context.EditOrSend while updating message counters.
func (m metricsContext) EditOrSend(what interface{}, opts ...interface{}) error {
	err := m.Context.EditOrSend(what, opts...)
	if err == nil {
		m.incMessages(hasKeyboard(opts))
	}
	return err
}

// MessageMetricsMiddleware counts the update and instruments the context to
// track replies and keyboard usage.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if m := activeMetrics.Load(); m != nil {
			m.Updates.WithLabelValues(UpdateKind(c.Update())).Inc()
		}
		c.Set("messages", 0)
		c.Set("kb", false)
		return next(metricsContext{Context: c})
	}
}

// GetCounters reads message count and keyboard presence flags from context.
func GetCounters(c tele.Context) (int, bool) {
	msgs := 0
	if v := c.Get("messages"); v != nil {
		if n, ok := v.(int); ok {
			msgs = n
		}
	}
	kb := false
	if v := c.Get("kb"); v != nil {
		if b, ok := v.(bool); ok {
			kb = b
		}
	}
	return msgs, kb
}
