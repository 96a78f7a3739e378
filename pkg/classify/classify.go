// Package classify runs pre-trained image classification models.
//
// A model lives in a directory containing the network weights and a
// labels.txt file, one label per line in output order. Two kinds of model
// are used by the capture commands: a binary interest model whose positive
// label is "interesting", and a multi-category model whose top label picks
// the save subdirectory. Both are consumed through the same Classifier
// interface.
package classify

import (
	"image"
	"strings"
)

// LabelInteresting is the positive label emitted by interest models.
// Anything else ("not interesting", "uninteresting", ...) counts as
// negative.
const LabelInteresting = "interesting"

// Prediction is the fixed-shape result of one inference call.
type Prediction struct {
	// Label is the top predicted label.
	Label string

	// Confidence is the score of the top label in [0, 1].
	Confidence float64
}

// Interesting reports whether the prediction carries the positive interest
// label. Comparison is case- and whitespace-insensitive because exported
// label files are hand-written.
func (p Prediction) Interesting() bool {
	return strings.EqualFold(strings.TrimSpace(p.Label), LabelInteresting)
}

// Classifier is the interface for classification backends.
type Classifier interface {
	// Classify runs inference on one frame and returns the top
	// prediction.
	Classify(img image.Image) (Prediction, error)

	// Labels returns the model's labels in output order.
	Labels() []string

	// Close releases model resources.
	Close() error
}
