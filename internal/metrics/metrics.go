package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the API collectors. It satisfies orders.Recorder.
type Metrics struct {
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	ordersCreated     *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	uploadURLs        prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the collectors on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewWithRegistry registers on reg and serves from gatherer. Registering
// twice on the same registry returns the existing collectors.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Metrics{
		requests: registerCounterVec(reg, prometheus.CounterOpts{
			Name: "storybook_http_requests_total",
			Help: "HTTP requests handled by the API",
		}, []string{"method", "route", "code"}),
		requestDuration: registerHistogramVec(reg, prometheus.HistogramOpts{
			Name:    "storybook_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		ordersCreated: registerCounterVec(reg, prometheus.CounterOpts{
			Name: "storybook_orders_created_total",
			Help: "Orders created, by product tier",
		}, []string{"product_id"}),
		statusTransitions: registerCounterVec(reg, prometheus.CounterOpts{
			Name: "storybook_order_status_transitions_total",
			Help: "Order status changes, by target status",
		}, []string{"to"}),
		uploadURLs: registerCounter(reg, prometheus.CounterOpts{
			Name: "storybook_upload_urls_issued_total",
			Help: "Presigned upload URLs issued",
		}),
		gatherer: gatherer,
	}
}

func (m *Metrics) OrderCreated(productID string) {
	m.ordersCreated.WithLabelValues(productID).Inc()
}

func (m *Metrics) StatusChanged(to string) {
	m.statusTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) UploadURLsIssued(n int) {
	m.uploadURLs.Add(float64(n))
}

// Middleware counts every request under its route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}
