package loop

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/captrap/captrap/pkg/camera"
	"github.com/captrap/captrap/pkg/classify"
)

var (
	interesting   = classify.Prediction{Label: classify.LabelInteresting, Confidence: 0.9}
	uninteresting = classify.Prediction{Label: "uninteresting", Confidence: 0.8}
)

// recordingSink counts writes instead of touching the filesystem.
type recordingSink struct {
	mu         sync.Mutex
	plain      int
	categories []string
	samples    int
	saveErr    error
}

func (s *recordingSink) Save(_ image.Image, _ time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.plain++
	return fmt.Sprintf("plain-%d.jpg", s.plain), nil
}

func (s *recordingSink) SaveCategory(category string, _ image.Image, _ time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.categories = append(s.categories, category)
	return fmt.Sprintf("%s/%d.jpg", category, len(s.categories)), nil
}

func (s *recordingSink) SaveSample(_ image.Image, _ time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.samples++
	return fmt.Sprintf("uninteresting/un-%d.jpg", s.samples), nil
}

func (s *recordingSink) counts() (plain, categories, samples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plain, len(s.categories), s.samples
}

// advance steps a mock clock, pausing briefly each step so the loop
// goroutine can park on its next timer.
func advance(mock *clock.Mock, steps int, step time.Duration) {
	for i := 0; i < steps; i++ {
		time.Sleep(3 * time.Millisecond)
		mock.Add(step)
	}
	time.Sleep(3 * time.Millisecond)
}

// waitFor polls a condition with a real-time deadline.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		filtered bool
		wantErr  bool
	}{
		{"defaults are valid", func(*Config) {}, true, false},
		{"zero capture interval", func(c *Config) { c.CaptureInterval = 0 }, false, true},
		{"zero max failures", func(c *Config) { c.MaxFailures = 0 }, false, true},
		{"zero check interval", func(c *Config) { c.CheckInterval = 0 }, true, true},
		{"check exceeds capture", func(c *Config) {
			c.CheckInterval = 2 * time.Minute
		}, true, true},
		{"plain loop ignores check interval", func(c *Config) { c.CheckInterval = 0 }, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.validate(tt.filtered)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunnerSavesEveryTick(t *testing.T) {
	mock := clock.NewMock()
	sink := &recordingSink{}
	r, err := NewRunner(camera.NewMock(), sink, Config{
		CaptureInterval: time.Second,
		MaxFailures:     3,
		Clock:           mock,
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	advance(mock, 5, time.Second)
	waitFor(t, func() bool { p, _, _ := sink.counts(); return p >= 5 },
		"expected 5 saves after 5 ticks")

	cancel()
	if err := <-done; err != nil {
		t.Errorf("cancellation should stop cleanly, got %v", err)
	}
}

func TestRunnerToleratesTransientFailure(t *testing.T) {
	mock := clock.NewMock()
	sink := &recordingSink{}

	cam := camera.NewMock()
	var tick int
	cam.CaptureFunc = func() (*camera.Frame, error) {
		tick++
		if tick == 3 {
			return nil, errors.New("device hiccup")
		}
		return camera.NewFrame(camera.TestImage(8, 8), time.Now()), nil
	}

	r, err := NewRunner(cam, sink, Config{
		CaptureInterval: time.Second,
		MaxFailures:     10,
		Clock:           mock,
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	advance(mock, 5, time.Second)
	waitFor(t, func() bool { p, _, _ := sink.counts(); return p >= 4 },
		"expected ticks 1,2,4,5 to save")

	cancel()
	if err := <-done; err != nil {
		t.Errorf("a single failed tick must not terminate the loop, got %v", err)
	}
}

func TestRunnerFailureBudgetExhausted(t *testing.T) {
	mock := clock.NewMock()
	cam := camera.NewMock()
	cam.CaptureFunc = func() (*camera.Frame, error) {
		return nil, errors.New("device gone")
	}

	r, err := NewRunner(cam, &recordingSink{}, Config{
		CaptureInterval: time.Second,
		MaxFailures:     3,
		Clock:           mock,
	})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	advance(mock, 3, time.Second)

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected a terminal error after the failure budget")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not terminate after repeated failures")
	}
}

// With check=2s, interval=10s and a classifier alternating each tick,
// 20s of ticks produce exactly two save decisions, each using the most
// recent classification at its boundary.
func TestFilterAlternatingScenario(t *testing.T) {
	mock := clock.NewMock()
	sink := &recordingSink{}
	r, err := NewFilterRunner(camera.NewMock(),
		classify.NewSequenceMock(interesting, uninteresting),
		nil, sink, Config{
			CheckInterval:   2 * time.Second,
			CaptureInterval: 10 * time.Second,
			MaxFailures:     10,
			Clock:           mock,
		})
	if err != nil {
		t.Fatal(err)
	}

	r.lastDecision = mock.Now()
	for i := 0; i < 10; i++ {
		mock.Add(2 * time.Second)
		if err := r.check(); err != nil {
			t.Fatalf("check tick %d failed: %v", i+1, err)
		}
		if err := r.maybeDecide(); err != nil {
			t.Fatalf("decision at tick %d failed: %v", i+1, err)
		}
	}

	if r.decisions != 2 {
		t.Errorf("expected exactly 2 save decisions over 20s, got %d", r.decisions)
	}
	// t=10s sees "interesting" (tick 5), t=20s sees "uninteresting" (tick 10)
	plain, _, _ := sink.counts()
	if plain != 1 {
		t.Errorf("expected exactly 1 save, got %d", plain)
	}
	if r.saved != 1 || r.skipped != 1 {
		t.Errorf("expected 1 saved + 1 skipped, got %d/%d", r.saved, r.skipped)
	}
}

func TestFilterNeverInterestingWritesNothing(t *testing.T) {
	mock := clock.NewMock()
	sink := &recordingSink{}
	r, err := NewFilterRunner(camera.NewMock(),
		classify.NewSequenceMock(uninteresting),
		nil, sink, Config{
			CheckInterval:   time.Second,
			CaptureInterval: 5 * time.Second,
			MaxFailures:     10,
			Clock:           mock,
		})
	if err != nil {
		t.Fatal(err)
	}

	r.lastDecision = mock.Now()
	for i := 0; i < 20; i++ {
		mock.Add(time.Second)
		if err := r.check(); err != nil {
			t.Fatal(err)
		}
		if err := r.maybeDecide(); err != nil {
			t.Fatal(err)
		}
	}

	if r.decisions != 4 {
		t.Errorf("expected 4 decisions over 20 ticks, got %d", r.decisions)
	}
	plain, cats, samples := sink.counts()
	if plain+cats+samples != 0 {
		t.Errorf("never-interesting must write nothing, got %d/%d/%d", plain, cats, samples)
	}
}

func TestFilterAlwaysInterestingWithCategory(t *testing.T) {
	mock := clock.NewMock()
	sink := &recordingSink{}
	category := classify.NewMock()
	category.ClassifyFunc = func(image.Image) (classify.Prediction, error) {
		return classify.Prediction{Label: "bird", Confidence: 0.7}, nil
	}

	r, err := NewFilterRunner(camera.NewMock(),
		classify.NewSequenceMock(interesting),
		category, sink, Config{
			CheckInterval:   time.Second,
			CaptureInterval: 5 * time.Second,
			MaxFailures:     10,
			Clock:           mock,
		})
	if err != nil {
		t.Fatal(err)
	}

	r.lastDecision = mock.Now()
	for i := 0; i < 15; i++ {
		mock.Add(time.Second)
		if err := r.check(); err != nil {
			t.Fatal(err)
		}
		if err := r.maybeDecide(); err != nil {
			t.Fatal(err)
		}
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.categories) != 3 {
		t.Fatalf("expected 3 category saves over 15 ticks, got %d", len(sink.categories))
	}
	for _, c := range sink.categories {
		if c != "bird" {
			t.Errorf("every save should land under bird/, got %q", c)
		}
	}
	if sink.plain != 0 {
		t.Errorf("category loop must not save to the root, got %d", sink.plain)
	}
}

func TestFilterNoClassificationYetSkips(t *testing.T) {
	mock := clock.NewMock()
	sink := &recordingSink{}
	cam := camera.NewMock()
	cam.CaptureFunc = func() (*camera.Frame, error) {
		return nil, errors.New("device not ready")
	}

	r, err := NewFilterRunner(cam, classify.NewMock(), nil, sink, Config{
		CheckInterval:   2 * time.Second,
		CaptureInterval: 4 * time.Second,
		MaxFailures:     10,
		Clock:           mock,
	})
	if err != nil {
		t.Fatal(err)
	}

	r.lastDecision = mock.Now()
	for i := 0; i < 2; i++ {
		mock.Add(2 * time.Second)
		if err := r.check(); err != nil {
			t.Fatal(err)
		}
		if err := r.maybeDecide(); err != nil {
			t.Fatal(err)
		}
	}

	if r.decisions != 1 || r.skipped != 1 {
		t.Errorf("boundary without a classification must skip, got decisions=%d skipped=%d",
			r.decisions, r.skipped)
	}
	plain, cats, samples := sink.counts()
	if plain+cats+samples != 0 {
		t.Errorf("nothing should be written, got %d/%d/%d", plain, cats, samples)
	}
}

func TestFilterFrameWrittenAtMostOnce(t *testing.T) {
	mock := clock.NewMock()
	sink := &recordingSink{}
	r, err := NewFilterRunner(camera.NewMock(),
		classify.NewSequenceMock(interesting),
		nil, sink, Config{
			CheckInterval:   time.Second,
			CaptureInterval: time.Second,
			MaxFailures:     10,
			Clock:           mock,
		})
	if err != nil {
		t.Fatal(err)
	}

	r.lastDecision = mock.Now()
	mock.Add(time.Second)
	if err := r.check(); err != nil {
		t.Fatal(err)
	}
	if err := r.maybeDecide(); err != nil {
		t.Fatal(err)
	}

	// A second boundary without a fresh check must not re-save the frame
	mock.Add(time.Second)
	if err := r.maybeDecide(); err != nil {
		t.Fatal(err)
	}

	plain, _, _ := sink.counts()
	if plain != 1 {
		t.Errorf("frame must be written exactly once, got %d saves", plain)
	}
	if r.decisions != 2 {
		t.Errorf("expected 2 decisions, got %d", r.decisions)
	}
}

func TestFilterSaveUninterestingSamples(t *testing.T) {
	mock := clock.NewMock()
	sink := &recordingSink{}
	r, err := NewFilterRunner(camera.NewMock(),
		classify.NewSequenceMock(uninteresting),
		nil, sink, Config{
			CheckInterval:     time.Second,
			CaptureInterval:   5 * time.Second,
			MaxFailures:       10,
			SaveUninteresting: true,
			Clock:             mock,
		})
	if err != nil {
		t.Fatal(err)
	}

	r.lastDecision = mock.Now()
	for i := 0; i < 5; i++ {
		mock.Add(time.Second)
		if err := r.check(); err != nil {
			t.Fatal(err)
		}
		if err := r.maybeDecide(); err != nil {
			t.Fatal(err)
		}
	}

	plain, cats, samples := sink.counts()
	if samples != 5 {
		t.Errorf("expected one sample per uninteresting tick, got %d", samples)
	}
	if plain != 0 || cats != 0 {
		t.Errorf("uninteresting frames must only produce samples, got %d/%d", plain, cats)
	}
}

func TestFilterClassifierErrorKeepsLatest(t *testing.T) {
	mock := clock.NewMock()
	sink := &recordingSink{}

	interest := classify.NewMock()
	var call int
	interest.ClassifyFunc = func(image.Image) (classify.Prediction, error) {
		call++
		if call == 1 {
			return interesting, nil
		}
		return classify.Prediction{}, errors.New("inference failed")
	}

	r, err := NewFilterRunner(camera.NewMock(), interest, nil, sink, Config{
		CheckInterval:   time.Second,
		CaptureInterval: 2 * time.Second,
		MaxFailures:     10,
		Clock:           mock,
	})
	if err != nil {
		t.Fatal(err)
	}

	r.lastDecision = mock.Now()
	for i := 0; i < 2; i++ {
		mock.Add(time.Second)
		if err := r.check(); err != nil {
			t.Fatal(err)
		}
		if err := r.maybeDecide(); err != nil {
			t.Fatal(err)
		}
	}

	// Tick 2 failed, so the boundary uses the classification from tick 1
	plain, _, _ := sink.counts()
	if plain != 1 {
		t.Errorf("boundary should save the most recent successful classification, got %d", plain)
	}
}

func TestFilterRunWithMockClock(t *testing.T) {
	mock := clock.NewMock()
	sink := &recordingSink{}
	r, err := NewFilterRunner(camera.NewMock(),
		classify.NewSequenceMock(interesting),
		nil, sink, Config{
			CheckInterval:   time.Second,
			CaptureInterval: 3 * time.Second,
			MaxFailures:     10,
			Clock:           mock,
		})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	advance(mock, 6, time.Second)
	waitFor(t, func() bool { p, _, _ := sink.counts(); return p >= 2 },
		"expected 2 saves after 6s with a 3s capture interval")

	cancel()
	if err := <-done; err != nil {
		t.Errorf("cancellation should stop cleanly, got %v", err)
	}
}
