package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"adminkit.org/internal/obs"
)

// Sweeper runs the expired-session sweep on a cron schedule.
type Sweeper struct {
	registry *Registry
	cron     *cron.Cron
}

// NewSweeper schedules SweepExpired according to the cron expression
// (standard five-field syntax or @every descriptors).
func NewSweeper(registry *Registry, schedule string) (*Sweeper, error) {
	c := cron.New()
	s := &Sweeper{registry: registry, cron: c}
	if _, err := c.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	count, err := s.registry.SweepExpired(ctx)
	if err != nil {
		obs.LogError("session sweep failed", map[string]any{"error": err.Error()})
		return
	}
	if count > 0 {
		obs.LogRequest(map[string]any{
			"msg":   "session sweep",
			"swept": count,
		})
	}
}

// Start begins scheduled sweeps.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
