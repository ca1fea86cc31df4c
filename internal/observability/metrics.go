// Package observability exposes simulation metrics to Prometheus and sets
// up OpenTelemetry tracing.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cxd309/tms-rail/internal/engine"
	"github.com/cxd309/tms-rail/internal/signaling"
)

var _ engine.Recorder = (*SimCollector)(nil)

// SimCollector bundles the simulation's Prometheus metrics and implements
// engine.Recorder.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Ticks            prometheus.Counter
	SimSeconds       prometheus.Gauge
	OccupiedSegments prometheus.Gauge
	TrainSpeed       *prometheus.GaugeVec
	Resyncs          *prometheus.CounterVec
	StateTransitions *prometheus.CounterVec
}

// NewSimCollector registers the simulation metrics against reg, defaulting
// to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "railsim_ticks_total",
		Help: "Total number of simulation ticks advanced.",
	}), "railsim_ticks_total")
	if err != nil {
		return nil, err
	}
	simSeconds, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "railsim_sim_seconds",
		Help: "Current simulated time in seconds.",
	}), "railsim_sim_seconds")
	if err != nil {
		return nil, err
	}
	occupied, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "railsim_occupied_segments",
		Help: "Number of track segments currently occupied by a train.",
	}), "railsim_occupied_segments")
	if err != nil {
		return nil, err
	}
	speed, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "railsim_train_speed",
		Help: "Speed applied to each train on the last tick, in distance units per frame.",
	}, []string{"train"}), "railsim_train_speed")
	if err != nil {
		return nil, err
	}
	resyncs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "railsim_consist_resyncs_total",
		Help: "Total number of times a consist was rebound after drifting out of formation.",
	}, []string{"train"}), "railsim_consist_resyncs_total")
	if err != nil {
		return nil, err
	}
	transitions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "railsim_driver_transitions_total",
		Help: "Total number of driver state changes, labeled by train and states.",
	}, []string{"train", "from", "to"}), "railsim_driver_transitions_total")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:         gatherer,
		Ticks:            ticks,
		SimSeconds:       simSeconds,
		OccupiedSegments: occupied,
		TrainSpeed:       speed,
		Resyncs:          resyncs,
		StateTransitions: transitions,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *SimCollector) ObserveTick(simSeconds float64) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.SimSeconds.Set(simSeconds)
}

func (c *SimCollector) SetTrainSpeed(train string, speed float64) {
	if c == nil {
		return
	}
	c.TrainSpeed.WithLabelValues(train).Set(speed)
}

func (c *SimCollector) SetOccupiedSegments(n int) {
	if c == nil {
		return
	}
	c.OccupiedSegments.Set(float64(n))
}

func (c *SimCollector) IncResync(train string) {
	if c == nil {
		return
	}
	c.Resyncs.WithLabelValues(train).Inc()
}

func (c *SimCollector) IncStateTransition(train string, from, to signaling.State) {
	if c == nil {
		return
	}
	c.StateTransitions.WithLabelValues(train, string(from), string(to)).Inc()
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
