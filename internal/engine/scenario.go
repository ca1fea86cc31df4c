package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cxd309/tms-rail/internal/logging"
	"github.com/cxd309/tms-rail/internal/scenario"
	"github.com/cxd309/tms-rail/internal/signaling"
	"github.com/cxd309/tms-rail/internal/train"
)

// NewFromScenario builds the scenario's network and places its trains.
// A zero opts.FrameSeconds takes the scenario's value.
func NewFromScenario(ctx context.Context, sc *scenario.Scenario, opts Options) (*Sim, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "engine.NewFromScenario")
	defer span.End()

	layout, err := sc.BuildNetwork(ctx, opts.Logger)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	model, err := sc.Kinematics.Build()
	if err != nil {
		return nil, fmt.Errorf("kinematics: %w", err)
	}
	if opts.FrameSeconds <= 0 {
		opts.FrameSeconds = sc.Sim.FrameSeconds
	}

	s := New(layout.Network, opts)
	interval := sc.Sim.SyncInterval
	if interval < 0 {
		interval = 0
	}
	for _, t := range sc.Trains {
		seg, err := layout.Placement(t)
		if err != nil {
			return nil, err
		}
		driver := signaling.NewDriver(model, s.Scheduler())
		c, err := train.New(layout.Network, sc.Models.Provider(), driver, train.Config{
			ID:              scenario.TrainID(t.Name),
			Name:            t.Name,
			Carriages:       t.CarriageCount(),
			WheelSeparation: sc.Models.WheelSeparation,
			SyncTolerance:   sc.Sim.SyncTolerance,
			SyncInterval:    interval,
		}, opts.Logger)
		if err != nil {
			return nil, err
		}
		if err := c.Bind(seg, t.Offset); err != nil {
			return nil, fmt.Errorf("placing train %q: %w", t.Name, err)
		}
		s.AddTrain(c)
	}

	span.SetAttributes(
		attribute.Int("sim.segments", layout.Network.Len()),
		attribute.Int("sim.trains", len(sc.Trains)),
		attribute.StringSlice("sim.unresolved_junctions", layout.Report.Unresolved),
	)
	s.log.Info(ctx, "scenario loaded",
		logging.String("scenario", sc.Name),
		logging.Int("segments", layout.Network.Len()),
		logging.Int("trains", len(sc.Trains)),
		logging.Int("unresolved_junctions", len(layout.Report.Unresolved)))
	return s, nil
}

// RunYAML is the entry point used by the CLI and WASM hosts. input is a
// scenario document (JSON is accepted, being valid YAML); the result is the
// simulation log as JSON.
func RunYAML(input string, ticks int) (string, error) {
	sc, err := scenario.Parse([]byte(input))
	if err != nil {
		return "", err
	}
	return RunScenario(context.Background(), sc, ticks, Options{})
}

// RunScenario builds and runs sc for ticks ticks of one frame each and
// returns the log as JSON.
func RunScenario(ctx context.Context, sc *scenario.Scenario, ticks int, opts Options) (string, error) {
	s, err := NewFromScenario(ctx, sc, opts)
	if err != nil {
		return "", fmt.Errorf("building simulation: %w", err)
	}
	log, err := s.Run(ctx, ticks, 1)
	if err != nil {
		return "", fmt.Errorf("running simulation: %w", err)
	}
	return MarshalLog(log)
}
