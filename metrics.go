package docstore

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/docstore/docstore-go/internal/pipeline"
	"github.com/docstore/docstore-go/session"
)

// clientMetrics holds the client's Prometheus collectors. A nil receiver (no
// registerer configured) disables collection without branching at call sites.
type clientMetrics struct {
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	sessionHits    prometheus.Counter
	sessionMisses  prometheus.Counter
	sessionEvicted prometheus.Counter
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	if reg == nil {
		return nil, nil
	}
	factory := promauto.With(reg)
	m := &clientMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docstore",
			Name:      "requests_total",
			Help:      "Requests issued, by operation and response status code.",
		}, []string{"operation", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docstore",
			Name:      "request_duration_seconds",
			Help:      "End-to-end request latency including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		sessionHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "docstore",
			Subsystem: "session",
			Name:      "hits_total",
			Help:      "Session token lookups that found a token.",
		}),
		sessionMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "docstore",
			Subsystem: "session",
			Name:      "misses_total",
			Help:      "Session token lookups that found nothing.",
		}),
		sessionEvicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "docstore",
			Subsystem: "session",
			Name:      "evictions_total",
			Help:      "Collections whose session state was evicted after a recreation.",
		}),
	}
	return m, nil
}

// policy returns the pipeline policy recording request counts and latency, or
// nil when metrics are disabled.
func (m *clientMetrics) policy() pipeline.Policy {
	if m == nil {
		return nil
	}
	return pipeline.PolicyFunc(func(req *pipeline.Request, next pipeline.Next) (*http.Response, error) {
		start := time.Now()
		resp, err := next(req)
		m.duration.WithLabelValues(req.Operation).Observe(time.Since(start).Seconds())
		code := "error"
		if err == nil {
			code = strconv.Itoa(resp.StatusCode)
		}
		m.requests.WithLabelValues(req.Operation, code).Inc()
		return resp, err
	})
}

// sessionHooks returns hooks feeding the session counters. The zero Hooks is
// returned when metrics are disabled.
func (m *clientMetrics) sessionHooks() session.Hooks {
	if m == nil {
		return session.Hooks{}
	}
	return session.Hooks{
		OnHit:   m.sessionHits.Inc,
		OnMiss:  m.sessionMisses.Inc,
		OnEvict: m.sessionEvicted.Inc,
	}
}
