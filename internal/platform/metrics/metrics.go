package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ReservationsCreated prometheus.Counter
	Transitions         *prometheus.CounterVec
	Scans               *prometheus.CounterVec
	Expirations         *prometheus.CounterVec
	Sanctions           *prometheus.CounterVec
	LoginsLocked        prometheus.Counter
	SweepDuration       prometheus.Histogram
	RequestDuration     *prometheus.HistogramVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers on a caller-supplied registry; tests use a fresh one
// per suite so repeated construction does not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReservationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "parqueo_reservations_created_total",
			Help: "Total number of reservations created",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parqueo_reservation_transitions_total",
			Help: "Reservation state transitions by target state",
		}, []string{"target"}),
		Scans: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parqueo_checkpoint_scans_total",
			Help: "Checkpoint scans by checkpoint and outcome",
		}, []string{"checkpoint", "outcome"}),
		Expirations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parqueo_sweeper_expirations_total",
			Help: "Reservations expired by the sweeper, by pass",
		}, []string{"pass"}),
		Sanctions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parqueo_sanctions_total",
			Help: "Sanctions created by punishment kind",
		}, []string{"punishment"}),
		LoginsLocked: factory.NewCounter(prometheus.CounterOpts{
			Name: "parqueo_logins_locked_total",
			Help: "Login attempts refused because of an effective suspension",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "parqueo_sweep_cycle_duration_seconds",
			Help:    "Duration of a full sweep cycle",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parqueo_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
