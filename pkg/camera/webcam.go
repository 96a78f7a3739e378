package camera

import (
	"fmt"
	"strconv"
	"time"

	"gocv.io/x/gocv"
)

// Webcam captures frames from a local V4L2/AVFoundation device via OpenCV.
type Webcam struct {
	cap *gocv.VideoCapture
	cfg Config
}

// Open opens the configured capture device and waits out the warm-up
// period. The caller owns the returned Webcam and must Close it.
func Open(cfg Config) (*Webcam, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid camera config: %s", errs[0])
	}

	vc, err := gocv.OpenVideoCapture(deviceID(cfg.Device))
	if err != nil {
		return nil, fmt.Errorf("open capture device %q: %w", cfg.Device, err)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	w := &Webcam{cap: vc, cfg: cfg}
	w.warmup()
	return w, nil
}

// deviceID converts a numeric device string to an int index, which OpenCV
// treats differently from a device path.
func deviceID(device string) interface{} {
	if idx, err := strconv.Atoi(device); err == nil {
		return idx
	}
	return device
}

// warmup reads and discards frames until the sensor has had time to settle
// exposure and white balance.
func (w *Webcam) warmup() {
	if w.cfg.Warmup <= 0 {
		return
	}
	mat := gocv.NewMat()
	defer mat.Close()

	deadline := time.Now().Add(w.cfg.Warmup)
	for time.Now().Before(deadline) {
		w.cap.Read(&mat)
	}
}

// Capture grabs one frame from the device.
func (w *Webcam) Capture() (*Frame, error) {
	mat := gocv.NewMat()
	defer mat.Close()

	if ok := w.cap.Read(&mat); !ok {
		return nil, fmt.Errorf("device %q closed or disconnected", w.cfg.Device)
	}
	if mat.Empty() {
		return nil, fmt.Errorf("device %q returned an empty frame", w.cfg.Device)
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	return NewFrame(img, time.Now()), nil
}

// Close releases the capture device.
func (w *Webcam) Close() error {
	return w.cap.Close()
}
