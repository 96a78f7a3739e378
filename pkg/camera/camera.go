// Package camera provides single-frame capture from a local camera device.
//
// The package abstracts "grab one frame now" behind the Camera interface so
// the capture loops can be driven by a real webcam or by a mock in tests.
// Exactly one consumer owns a Camera at a time; implementations only need to
// be safe for that single sequential caller.
package camera

import (
	"image"
	"time"

	"github.com/google/uuid"
)

// Frame is a single captured image. It lives for one loop tick: it is either
// written to disk once or discarded.
type Frame struct {
	// ID correlates a frame across log lines (capture, classify, save).
	ID uuid.UUID

	// Image is the decoded frame.
	Image image.Image

	// Timestamp is when the frame was captured. Save filenames derive
	// from it.
	Timestamp time.Time
}

// Camera is the interface for capture backends.
type Camera interface {
	// Capture grabs one frame from the device.
	Capture() (*Frame, error)

	// Close releases the device.
	Close() error
}

// NewFrame wraps an image in a Frame stamped with the given time.
func NewFrame(img image.Image, ts time.Time) *Frame {
	return &Frame{
		ID:        uuid.New(),
		Image:     img,
		Timestamp: ts,
	}
}
