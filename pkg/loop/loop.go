// Package loop implements the periodic capture loops behind the captrap
// commands.
//
// Runner is the plain loop: sleep, capture, save. FilterRunner is the
// model-filtered loop: it classifies a frame on every check tick and makes
// a save decision on every capture-interval boundary. Both are single
// sequential loops; the interval sleep is the only suspension point, and
// the two thresholds of the filtered loop are elapsed-time comparisons
// inside the same loop rather than separate timers.
//
// Time is injected through a clock so the boundary arithmetic is testable
// without real sleeping.
package loop

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/captrap/captrap/internal/log"
)

// Saver writes a frame to the output directory. Satisfied by store.Store.
type Saver interface {
	Save(img image.Image, ts time.Time) (string, error)
}

// Sink is the full output surface needed by the filtered loops.
// Satisfied by store.Store.
type Sink interface {
	Saver
	SaveCategory(category string, img image.Image, ts time.Time) (string, error)
	SaveSample(img image.Image, ts time.Time) (string, error)
}

// Config holds loop timing and failure policy.
type Config struct {
	// CheckInterval is how often the filtered loops capture and
	// classify. Unused by the plain Runner.
	CheckInterval time.Duration

	// CaptureInterval is how often a save happens: every tick for the
	// plain Runner, every save-decision boundary for the filtered
	// loops. Must be >= CheckInterval.
	CaptureInterval time.Duration

	// MaxFailures is how many consecutive failed ticks are tolerated
	// before the loop gives up. The poll interval is the only retry
	// delay.
	MaxFailures int

	// SaveUninteresting writes frames classified uninteresting to the
	// uninteresting/ subdirectory as retraining samples.
	SaveUninteresting bool

	// Clock overrides the time source. Nil means the real clock.
	Clock clock.Clock
}

// DefaultConfig returns the recommended filtered-loop configuration.
func DefaultConfig() Config {
	return Config{
		CheckInterval:   5 * time.Second,
		CaptureInterval: 60 * time.Second,
		MaxFailures:     10,
	}
}

func (c *Config) validate(filtered bool) error {
	if c.CaptureInterval <= 0 {
		return fmt.Errorf("capture interval must be positive, got %v", c.CaptureInterval)
	}
	if c.MaxFailures < 1 {
		return fmt.Errorf("max failures must be at least 1, got %d", c.MaxFailures)
	}
	if filtered {
		if c.CheckInterval <= 0 {
			return fmt.Errorf("check interval must be positive, got %v", c.CheckInterval)
		}
		if c.CheckInterval > c.CaptureInterval {
			return fmt.Errorf("check interval %v must not exceed capture interval %v",
				c.CheckInterval, c.CaptureInterval)
		}
	}
	return nil
}

func (c *Config) clock() clock.Clock {
	if c.Clock != nil {
		return c.Clock
	}
	return clock.New()
}

// sleep waits one interval or until the context is cancelled.
func sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	t := clk.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// failureBudget counts consecutive tick failures and turns a sustained
// outage into a fatal error.
type failureBudget struct {
	max         int
	consecutive int
}

// fail records one failed tick. It returns a terminal error once the
// budget is exhausted, nil while the loop should keep going.
func (b *failureBudget) fail(stage string, err error) error {
	b.consecutive++
	log.Warn("tick failed", "stage", stage, "error", err,
		"consecutive", b.consecutive, "budget", b.max)
	if b.consecutive >= b.max {
		return fmt.Errorf("%s failed %d times in a row: %w", stage, b.consecutive, err)
	}
	return nil
}

func (b *failureBudget) reset() {
	b.consecutive = 0
}
