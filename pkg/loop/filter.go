package loop

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/captrap/captrap/internal/log"
	"github.com/captrap/captrap/pkg/camera"
	"github.com/captrap/captrap/pkg/classify"
)

// observation is the single in-flight frame together with its
// classification. At most one exists at a time; it is written once or
// discarded at the next save decision.
type observation struct {
	frame    *camera.Frame
	pred     classify.Prediction
	category string
}

// FilterRunner is the model-filtered capture loop. Every check tick it
// captures and classifies a frame; on every capture-interval boundary it
// saves the most recent frame if its classification was interesting.
// With a category classifier attached, interesting frames are saved under
// a subdirectory named after the top category label.
type FilterRunner struct {
	cam      camera.Camera
	interest classify.Classifier
	category classify.Classifier // nil for interest-only filtering
	sink     Sink
	cfg      Config
	clk      clock.Clock
	budget   failureBudget

	latest       *observation
	lastDecision time.Time

	decisions int
	saved     int
	skipped   int
}

// NewFilterRunner creates a filtered capture loop. category may be nil,
// in which case saves land directly in the output root.
func NewFilterRunner(cam camera.Camera, interest, category classify.Classifier, sink Sink, cfg Config) (*FilterRunner, error) {
	if err := cfg.validate(true); err != nil {
		return nil, err
	}
	return &FilterRunner{
		cam:      cam,
		interest: interest,
		category: category,
		sink:     sink,
		cfg:      cfg,
		clk:      cfg.clock(),
		budget:   failureBudget{max: cfg.MaxFailures},
	}, nil
}

// Run checks and saves until the context is cancelled or the failure
// budget is exhausted. Cancellation is a clean stop and returns nil.
func (r *FilterRunner) Run(ctx context.Context) error {
	log.Info("filtered capture loop started",
		"check", r.cfg.CheckInterval,
		"interval", r.cfg.CaptureInterval,
		"categories", r.category != nil)

	r.lastDecision = r.clk.Now()
	for {
		if err := sleep(ctx, r.clk, r.cfg.CheckInterval); err != nil {
			log.Info("filtered capture loop stopped",
				"decisions", r.decisions, "saved", r.saved, "skipped", r.skipped)
			return nil
		}
		if err := r.check(); err != nil {
			return err
		}
		if err := r.maybeDecide(); err != nil {
			return err
		}
	}
}

// check runs one check tick: capture, classify, and record the result as
// the latest observation. On a failed tick the previous observation is
// kept; the save decision uses whatever classification is most recent.
func (r *FilterRunner) check() error {
	frame, err := r.cam.Capture()
	if err != nil {
		return r.budget.fail("capture", err)
	}

	pred, err := r.interest.Classify(frame.Image)
	if err != nil {
		return r.budget.fail("classify", err)
	}

	obs := &observation{frame: frame, pred: pred}
	if pred.Interesting() {
		if r.category != nil {
			cpred, err := r.category.Classify(frame.Image)
			if err != nil {
				return r.budget.fail("categorize", err)
			}
			obs.category = cpred.Label
		}
	} else if r.cfg.SaveUninteresting {
		path, err := r.sink.SaveSample(frame.Image, frame.Timestamp)
		if err != nil {
			return r.budget.fail("save sample", err)
		}
		log.Debug("sample saved", "frame", frame.ID, "path", path)
	}

	r.latest = obs
	r.budget.reset()
	log.Debug("frame classified", "frame", frame.ID,
		"label", pred.Label, "confidence", pred.Confidence, "category", obs.category)
	return nil
}

// maybeDecide runs the save decision when a capture-interval boundary has
// been reached.
func (r *FilterRunner) maybeDecide() error {
	now := r.clk.Now()
	if now.Sub(r.lastDecision) < r.cfg.CaptureInterval {
		return nil
	}
	r.lastDecision = now
	return r.decide()
}

// decide saves the latest frame if it was classified interesting,
// otherwise skips. Either way the frame is discarded afterwards so it can
// never be evaluated twice.
func (r *FilterRunner) decide() error {
	r.decisions++
	obs := r.latest
	r.latest = nil

	if obs == nil {
		r.skipped++
		log.Debug("save skipped, no classification yet")
		return nil
	}
	if !obs.pred.Interesting() {
		r.skipped++
		log.Debug("save skipped", "frame", obs.frame.ID,
			"label", obs.pred.Label, "confidence", obs.pred.Confidence)
		return nil
	}

	var (
		path string
		err  error
	)
	if r.category != nil {
		path, err = r.sink.SaveCategory(obs.category, obs.frame.Image, obs.frame.Timestamp)
	} else {
		path, err = r.sink.Save(obs.frame.Image, obs.frame.Timestamp)
	}
	if err != nil {
		return r.budget.fail("save", err)
	}

	r.saved++
	log.Info("frame saved", "frame", obs.frame.ID, "path", path,
		"confidence", obs.pred.Confidence)
	return nil
}
