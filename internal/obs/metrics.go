package obs

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// defaultBucketsMs suits quote lookups (single digit ms) up to admin statistics queries.
var defaultBucketsMs = []float64{2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}

// HTTPMetrics are the API request collectors, labelled by route area and template.
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewHTTPMetrics builds and registers the HTTP collectors under namespace.
func NewHTTPMetrics(namespace string, buckets []float64, reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(buckets) == 0 {
		buckets = defaultBucketsMs
	} else {
		sort.Float64s(buckets)
	}
	return &HTTPMetrics{
		Requests: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route area, route template and status.",
		}, []string{"method", "area", "route", "status"})),
		Duration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   buckets,
		}, []string{"area", "route"})),
		InFlight: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Requests currently being served.",
		})),
	}
}

func (m *HTTPMetrics) observe(method, route string, status int, took time.Duration) {
	area := RouteArea(route)
	if route == "" {
		route = AreaUnmatched
	}
	m.Requests.WithLabelValues(method, area, route, strconv.Itoa(status)).Inc()
	m.Duration.WithLabelValues(area, route).Observe(DurationMillis(took))
}

var (
	domainOnce sync.Once

	// AdQuoteTotal counts price quote requests by outcome.
	AdQuoteTotal *prometheus.CounterVec
	// AdSubscriptionStartedTotal counts subscription start attempts by payment method and outcome.
	AdSubscriptionStartedTotal *prometheus.CounterVec
	// AdPaymentConfirmedTotal counts bank transfers confirmed by admins.
	AdPaymentConfirmedTotal prometheus.Counter
	// AdBillingJobTotal counts per-item outcomes of the scheduled billing jobs.
	AdBillingJobTotal *prometheus.CounterVec
	// AdCreditSpentTotal accumulates the credit amount spent on advertising.
	AdCreditSpentTotal prometheus.Counter

	// BreakerState reports each breaker target as 0=closed, 1=open, 2=half-open.
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec
	// BreakerRejectedTotal counts calls skipped while a breaker was open.
	BreakerRejectedTotal *prometheus.CounterVec

	// RateLimitedTotal counts requests refused with 429 per limited scope.
	RateLimitedTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics registers the advertising and breaker collectors once per process.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		AdQuoteTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ad_quote_total",
			Help:      "Advertising price quotes by outcome.",
		}, []string{"result"}))
		AdSubscriptionStartedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ad_subscription_started_total",
			Help:      "Advertising subscription start attempts.",
		}, []string{"method", "result"}))
		AdPaymentConfirmedTotal = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ad_payment_confirmed_total",
			Help:      "Bank transfer payments confirmed.",
		}))
		AdBillingJobTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ad_billing_job_total",
			Help:      "Billing job item outcomes.",
		}, []string{"job", "result"}))
		AdCreditSpentTotal = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ad_credit_spent_total",
			Help:      "Advertising credit spent.",
		}))
		BreakerState = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Circuit breaker state per target.",
		}, []string{"target"}))
		BreakerTransitions = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "transition_total",
			Help:      "Circuit breaker state transitions.",
		}, []string{"target", "from", "to"}))
		BreakerRejectedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "rejected_total",
			Help:      "Calls skipped because the breaker was open.",
		}, []string{"target"}))
		RateLimitedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limit.",
		}, []string{"scope"}))
	})
}

// register adds c to reg, reusing the collector already registered under the same descriptor.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
			return c
		}
		panic(fmt.Errorf("obs: register collector: %w", err))
	}
	return c
}

// ParseBucketsCSV reads OBS_METRICS_BUCKETS_MS, skipping blanks and non-positive values.
func ParseBucketsCSV(csv string) []float64 {
	var out []float64
	for _, part := range strings.Split(csv, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || v <= 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}

// DurationMillis converts d to fractional milliseconds.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
