package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes simulation progress counters. All updates are in-memory
// increments; the only I/O is the scrape endpoint, outside the event loop.
type Collector struct {
	reg *prometheus.Registry

	EventsProcessed   prometheus.Counter
	PassengersServed  prometheus.Counter
	PassengersFailed  prometheus.Counter
	Dispatches        prometheus.Counter
	ForecastFallbacks prometheus.Counter

	QueuedPassengers prometheus.Gauge
	IdleBuses        prometheus.Gauge

	DispatchDecisionDuration prometheus.Histogram
}

// NewCollector builds and registers the simulation metric set.
func NewCollector(engineType string) *Collector {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"engine": engineType}

	c := &Collector{
		reg: reg,
		EventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "dispatchsim_events_processed_total",
			Help:        "Total simulation events processed.",
			ConstLabels: labels,
		}),
		PassengersServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "dispatchsim_passengers_served_total",
			Help:        "Passengers boarded within their wait tolerance.",
			ConstLabels: labels,
		}),
		PassengersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "dispatchsim_passengers_failed_total",
			Help:        "Passengers failed (unknown stop, tolerance, or horizon).",
			ConstLabels: labels,
		}),
		Dispatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "dispatchsim_dispatches_total",
			Help:        "Bus dispatch decisions taken.",
			ConstLabels: labels,
		}),
		ForecastFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "dispatchsim_forecast_fallbacks_total",
			Help:        "Forecast checks that fell back to the live queue signal.",
			ConstLabels: labels,
		}),
		QueuedPassengers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "dispatchsim_queued_passengers",
			Help:        "Passengers currently waiting across all stops.",
			ConstLabels: labels,
		}),
		IdleBuses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "dispatchsim_idle_buses",
			Help:        "Fleet buses currently idle.",
			ConstLabels: labels,
		}),
		DispatchDecisionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "dispatchsim_dispatch_decision_duration_seconds",
			Help:        "Wall-clock duration of one forecast-check decision pass.",
			Buckets:     prometheus.ExponentialBuckets(0.00001, 2, 15),
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(
		c.EventsProcessed,
		c.PassengersServed, c.PassengersFailed,
		c.Dispatches, c.ForecastFallbacks,
		c.QueuedPassengers, c.IdleBuses,
		c.DispatchDecisionDuration,
	)
	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}

// ObserveDecision records one dispatch decision pass duration.
func (c *Collector) ObserveDecision(start time.Time) {
	c.DispatchDecisionDuration.Observe(time.Since(start).Seconds())
}
