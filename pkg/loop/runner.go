package loop

import (
	"context"

	"github.com/benbjohnson/clock"

	"github.com/captrap/captrap/internal/log"
	"github.com/captrap/captrap/pkg/camera"
)

// Runner is the plain capture loop: every interval, capture one frame and
// save it.
type Runner struct {
	cam    camera.Camera
	sink   Saver
	cfg    Config
	clk    clock.Clock
	budget failureBudget

	saved int
}

// NewRunner creates a plain capture loop.
func NewRunner(cam camera.Camera, sink Saver, cfg Config) (*Runner, error) {
	if err := cfg.validate(false); err != nil {
		return nil, err
	}
	return &Runner{
		cam:    cam,
		sink:   sink,
		cfg:    cfg,
		clk:    cfg.clock(),
		budget: failureBudget{max: cfg.MaxFailures},
	}, nil
}

// Run captures and saves until the context is cancelled or the failure
// budget is exhausted. Cancellation is a clean stop and returns nil.
func (r *Runner) Run(ctx context.Context) error {
	log.Info("capture loop started", "interval", r.cfg.CaptureInterval)
	for {
		if err := sleep(ctx, r.clk, r.cfg.CaptureInterval); err != nil {
			log.Info("capture loop stopped", "saved", r.saved)
			return nil
		}
		if err := r.tick(); err != nil {
			return err
		}
	}
}

// tick captures one frame and writes it. A failed tick is skipped; only an
// exhausted failure budget terminates the loop.
func (r *Runner) tick() error {
	frame, err := r.cam.Capture()
	if err != nil {
		return r.budget.fail("capture", err)
	}

	path, err := r.sink.Save(frame.Image, frame.Timestamp)
	if err != nil {
		return r.budget.fail("save", err)
	}

	r.budget.reset()
	r.saved++
	log.Info("frame saved", "frame", frame.ID, "path", path)
	return nil
}
