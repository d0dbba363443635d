package engine

import (
	"time"
)

// PhaseController drives MatchingEngine.Tick off a wall-clock ticker,
// separating the time-driven loop (§2's "Phase Controller" component) from
// Tick itself, which stays a pure function of a caller-supplied now and is
// exercised directly and deterministically by tests (§9).
type PhaseController struct {
	engine   *MatchingEngine
	interval time.Duration

	stop chan struct{}
	done chan struct{}
}

// NewPhaseController builds a controller that ticks engine every interval.
func NewPhaseController(engine *MatchingEngine, interval time.Duration) *PhaseController {
	return &PhaseController{
		engine:   engine,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run ticks the engine on interval until Stop is called. Intended to be
// launched with `go controller.Run()`.
func (c *PhaseController) Run() {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.engine.Tick(now)
		}
	}
}

// Stop requests the controller's loop to exit and blocks until it has.
func (c *PhaseController) Stop() {
	close(c.stop)
	<-c.done
}
