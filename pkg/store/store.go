// Package store writes captured frames to timestamp-named JPEG files.
//
// All output lives under a single root directory. Category saves go to
// root/<category>/, uninteresting retraining samples to
// root/uninteresting/ with an "un-" filename prefix. Directories are
// created on demand. Filenames carry nanosecond precision so frames from
// two different ticks can never collide.
package store

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
)

const (
	// UninterestingDir is the subdirectory for retraining samples.
	UninterestingDir = "uninteresting"

	// samplePrefix marks retraining sample filenames.
	samplePrefix = "un-"

	// timeLayout mirrors the capture scripts' filename format, extended
	// with nanoseconds for uniqueness.
	timeLayout = "2006-01-02_15:04:05.000000000"
)

// Store writes frames beneath a root directory.
type Store struct {
	root    string
	quality int
}

// New creates a Store rooted at dir, creating the directory if missing.
// quality is the JPEG encoding quality (1-100).
func New(dir string, quality int) (*Store, error) {
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("jpeg quality %d out of range 1-100", quality)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", dir, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("output directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("output path %s is not a directory", dir)
	}
	return &Store{root: dir, quality: quality}, nil
}

// Root returns the base output directory.
func (s *Store) Root() string {
	return s.root
}

// Save writes a frame to the root directory and returns the written path.
func (s *Store) Save(img image.Image, ts time.Time) (string, error) {
	return s.write("", "", img, ts)
}

// SaveCategory writes a frame to root/<category>/, creating the
// subdirectory if absent.
func (s *Store) SaveCategory(category string, img image.Image, ts time.Time) (string, error) {
	if category == "" {
		return "", fmt.Errorf("empty category label")
	}
	return s.write(category, "", img, ts)
}

// SaveSample writes an uninteresting frame to root/uninteresting/ with an
// "un-" prefix, as material for improving the interest model.
func (s *Store) SaveSample(img image.Image, ts time.Time) (string, error) {
	return s.write(UninterestingDir, samplePrefix, img, ts)
}

// EnsureSubdir creates root/<name> if it does not exist. The category
// command pre-creates one per model label at startup.
func (s *Store) EnsureSubdir(name string) error {
	if err := os.MkdirAll(filepath.Join(s.root, name), 0o755); err != nil {
		return fmt.Errorf("create subdirectory %s: %w", name, err)
	}
	return nil
}

func (s *Store) write(subdir, prefix string, img image.Image, ts time.Time) (string, error) {
	dir := s.root
	if subdir != "" {
		if err := s.EnsureSubdir(subdir); err != nil {
			return "", err
		}
		dir = filepath.Join(s.root, subdir)
	}

	path := filepath.Join(dir, prefix+Filename(ts))
	if err := imaging.Save(img, path, imaging.JPEGQuality(s.quality)); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// Filename derives a JPEG filename from a capture timestamp.
func Filename(ts time.Time) string {
	return ts.Format(timeLayout) + ".jpg"
}
