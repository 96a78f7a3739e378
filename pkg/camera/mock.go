package camera

import (
	"image"
	"image/color"
	"sync"
	"time"
)

// Mock implements Camera for testing.
type Mock struct {
	// CaptureFunc is called when Capture is invoked.
	CaptureFunc func() (*Frame, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu       sync.Mutex
	captures int
	closed   bool
}

// NewMock creates a mock camera that returns a small gray test frame.
func NewMock() *Mock {
	return &Mock{
		CaptureFunc: func() (*Frame, error) {
			return NewFrame(TestImage(8, 8), time.Now()), nil
		},
	}
}

// Capture returns the next mock frame and records the call.
func (m *Mock) Capture() (*Frame, error) {
	m.mu.Lock()
	m.captures++
	m.mu.Unlock()
	return m.CaptureFunc()
}

// Close records the call and invokes CloseFunc if set.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Captures returns how many times Capture was called.
func (m *Mock) Captures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captures
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// TestImage returns a uniform gray image, useful as mock frame content.
func TestImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	gray := color.RGBA{R: 128, G: 128, B: 128, A: 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, gray)
		}
	}
	return img
}
