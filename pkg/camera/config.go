package camera

import "time"

// Config holds capture device settings.
type Config struct {
	// Device is the capture device: a numeric index ("0") or a device
	// path ("/dev/video0").
	Device string

	// Frame dimensions requested from the device. Classification models
	// in this project expect square 224x224 input, so frames default to
	// that size.
	Width  int
	Height int

	// Framerate is the target FPS requested from the device.
	Framerate int

	// Warmup is how long to let the sensor settle after opening before
	// the first frame is trusted. Frames read during warm-up are
	// discarded.
	Warmup time.Duration
}

// DefaultConfig returns the recommended capture configuration.
func DefaultConfig() Config {
	return Config{
		Device:    "0",
		Width:     224,
		Height:    224,
		Framerate: 30,
		Warmup:    2 * time.Second,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device == "" {
		errors = append(errors, "device must not be empty")
	}
	if c.Width < 16 || c.Width > 4096 {
		errors = append(errors, "width must be between 16 and 4096")
	}
	if c.Height < 16 || c.Height > 4096 {
		errors = append(errors, "height must be between 16 and 4096")
	}
	if c.Framerate < 1 || c.Framerate > 120 {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.Warmup < 0 {
		errors = append(errors, "warmup must not be negative")
	}

	return errors
}
