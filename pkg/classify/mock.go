package classify

import (
	"image"
	"sync"
)

// Mock implements Classifier for testing.
type Mock struct {
	// ClassifyFunc is called when Classify is invoked.
	ClassifyFunc func(img image.Image) (Prediction, error)

	// LabelsValue is returned by Labels.
	LabelsValue []string

	mu    sync.Mutex
	calls int
}

// NewMock creates a mock classifier that always reports "interesting".
func NewMock() *Mock {
	return &Mock{
		ClassifyFunc: func(image.Image) (Prediction, error) {
			return Prediction{Label: LabelInteresting, Confidence: 0.9}, nil
		},
		LabelsValue: []string{LabelInteresting, "uninteresting"},
	}
}

// NewSequenceMock creates a mock classifier that cycles through the given
// predictions, one per call.
func NewSequenceMock(preds ...Prediction) *Mock {
	m := &Mock{LabelsValue: []string{LabelInteresting, "uninteresting"}}
	i := 0
	m.ClassifyFunc = func(image.Image) (Prediction, error) {
		p := preds[i%len(preds)]
		i++
		return p, nil
	}
	return m
}

// Classify returns the next mock prediction and records the call.
func (m *Mock) Classify(img image.Image) (Prediction, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.ClassifyFunc(img)
}

// Labels returns the configured label list.
func (m *Mock) Labels() []string {
	return m.LabelsValue
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

// Calls returns how many times Classify was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
