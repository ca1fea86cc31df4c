package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cxd309/tms-rail/internal/engine"
	"github.com/cxd309/tms-rail/internal/export"
	"github.com/cxd309/tms-rail/internal/logging"
	"github.com/cxd309/tms-rail/internal/observability"
	"github.com/cxd309/tms-rail/internal/scenario"
	"github.com/cxd309/tms-rail/internal/stream"
)

// loadScenario resolves the scenario source: a file, "-" for stdin, or a
// preset (the station preset when none is named).
func loadScenario(arg, preset string) (*scenario.Scenario, error) {
	switch arg {
	case "":
		if preset == "" {
			return scenario.Default()
		}
		return scenario.Preset(preset)
	case "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return scenario.Parse(data)
	default:
		return scenario.Load(arg)
	}
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func initTracing(ctx context.Context, scenarioName string, log logging.Logger) func() {
	cfg := observability.TracingConfigFromEnv()
	cfg.Scenario = scenarioName
	shutdown, err := observability.InitTracing(ctx, cfg, log)
	if err != nil {
		log.Warn(ctx, "tracing unavailable", logging.Err(err))
		return func() {}
	}
	return func() { observability.ShutdownWithTimeout(context.Background(), shutdown, log) }
}

func runSimulation(ctx context.Context, arg, preset string, ticks int, delta float64, output string) error {
	log := logging.NewFromEnv()
	sc, err := loadScenario(arg, preset)
	if err != nil {
		return err
	}
	defer initTracing(ctx, sc.Name, log)()
	sim, err := engine.NewFromScenario(ctx, sc, engine.Options{Logger: log})
	if err != nil {
		return fmt.Errorf("building simulation: %w", err)
	}
	result, err := sim.Run(ctx, ticks, delta)
	if err != nil {
		return fmt.Errorf("simulation error: %w", err)
	}
	out, err := engine.MarshalLog(result)
	if err != nil {
		return err
	}
	return writeOutput(output, []byte(out))
}

func runServe(parent context.Context, arg, preset, addr string, fps int) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.NewFromEnv()
	sc, err := loadScenario(arg, preset)
	if err != nil {
		return err
	}
	defer initTracing(ctx, sc.Name, log)()
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewSimCollector(reg)
	if err != nil {
		return err
	}
	sim, err := engine.NewFromScenario(ctx, sc, engine.Options{Logger: log, Recorder: metrics})
	if err != nil {
		return fmt.Errorf("building simulation: %w", err)
	}

	events := stream.NewServer(log)
	defer events.Close()
	sim.Network().Subscribe(events.OccupancyListener())
	pump := stream.NewPump(sim, events, fps, log)

	mux := http.NewServeMux()
	mux.Handle("/events", events)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/network.geojson", func(w http.ResponseWriter, r *http.Request) {
		var (
			data []byte
			err  error
		)
		pump.Locked(func(s *engine.Sim) {
			data, err = export.NetworkJSON(s.Network(), export.DefaultOptions())
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write(data)
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", logging.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	go func() { _ = pump.Run(ctx) }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info(shutdownCtx, "shutting down")
	return srv.Shutdown(shutdownCtx)
}

func runExport(ctx context.Context, arg, preset, output string, samples int, rails bool, sleepers float64) error {
	sc, err := loadScenario(arg, preset)
	if err != nil {
		return err
	}
	layout, err := sc.BuildNetwork(ctx, logging.NewFromEnv())
	if err != nil {
		return err
	}
	data, err := export.NetworkJSON(layout.Network, export.Options{Samples: samples, Rails: rails, SleeperSpacing: sleepers})
	if err != nil {
		return err
	}
	return writeOutput(output, data)
}

func runValidate(ctx context.Context, arg, preset string) error {
	sc, err := loadScenario(arg, preset)
	if err != nil {
		return err
	}
	layout, err := sc.BuildNetwork(ctx, logging.Noop())
	if err != nil {
		return err
	}
	for _, t := range sc.Trains {
		if _, err := layout.Placement(t); err != nil {
			return err
		}
	}

	fmt.Printf("Scenario %q is valid.\n", sc.Name)
	fmt.Printf("  Routes:    %d\n", len(sc.Routes))
	fmt.Printf("  Segments:  %d\n", layout.Network.Len())
	fmt.Printf("  Junctions: %d\n", len(layout.Network.Junctions()))
	fmt.Printf("  Trains:    %d\n", len(sc.Trains))
	if !layout.Report.Complete() {
		fmt.Printf("  Unresolved junctions (left as dead ends): %v\n", layout.Report.Unresolved)
	}
	return nil
}
