package stream

import (
	"context"
	"sync"
	"time"

	"github.com/cxd309/tms-rail/internal/engine"
	"github.com/cxd309/tms-rail/internal/logging"
)

// Pump advances a simulation in real time and publishes every frame.
type Pump struct {
	mu  sync.Mutex
	sim *engine.Sim
	srv *Server
	fps int
	log logging.Logger
}

// NewPump returns a pump running sim at fps frames per second.
func NewPump(sim *engine.Sim, srv *Server, fps int, log logging.Logger) *Pump {
	if fps <= 0 {
		fps = 60
	}
	return &Pump{sim: sim, srv: srv, fps: fps, log: logging.OrNoop(log)}
}

// Locked runs fn while no tick is in progress. HTTP handlers reading the
// network use it to avoid racing the simulation.
func (p *Pump) Locked(fn func(*engine.Sim)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.sim)
}

// Step advances one frame and publishes it.
func (p *Pump) Step(ctx context.Context) error {
	p.mu.Lock()
	p.sim.Advance(ctx, 1)
	f := p.sim.Snapshot()
	p.mu.Unlock()
	return p.srv.PublishFrame(f)
}

// Run steps until ctx is done.
func (p *Pump) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(p.fps))
	defer ticker.Stop()
	p.log.Info(ctx, "simulation pump started", logging.Int("fps", p.fps))
	for {
		select {
		case <-ctx.Done():
			p.log.Info(ctx, "simulation pump stopped", logging.Int("ticks", p.sim.Tick()))
			return nil
		case <-ticker.C:
			if err := p.Step(ctx); err != nil {
				p.log.Warn(ctx, "publishing frame", logging.Err(err))
			}
		}
	}
}
