// Package config provides configuration helpers for captrap commands.
//
// Flags always win; these helpers only supply flag defaults, so
// CAPTRAP_* environment variables (or a .env file next to the binary)
// can tune a deployment without changing its service definition.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// Defaults shared by the capture commands.
const (
	DefaultPlainInterval   = 10 * time.Second
	DefaultCheckInterval   = 5 * time.Second
	DefaultCaptureInterval = 60 * time.Second
	DefaultMaxFailures     = 10
	DefaultJPEGQuality     = 85
)

// LoadDotenv loads a .env file from the working directory if one exists.
// A missing file is not an error.
func LoadDotenv() {
	_ = godotenv.Load()
}

// Device returns the camera device from the CAPTRAP_DEVICE env var.
// Falls back to device index 0.
func Device() string {
	if dev := os.Getenv("CAPTRAP_DEVICE"); dev != "" {
		return dev
	}
	return "0"
}

// Duration returns a duration from the named env var, or fallback if the
// variable is unset or unparseable.
func Duration(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// String returns the named env var, or fallback if unset.
func String(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// HomeDir joins elem under the user's home directory. Used for the default
// model locations (~/model, ~/models/interest, ~/models/categories).
// Falls back to a relative path when the home directory is unknown.
func HomeDir(elem ...string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(elem...)
	}
	return filepath.Join(append([]string{home}, elem...)...)
}
