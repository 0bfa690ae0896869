package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DirFrameSource serves the newest image in a spool directory. A camera
// helper (or anything else) drops frames there; the loop picks up the latest.
type DirFrameSource struct {
	dir string
}

// NewDirFrameSource returns a source reading from dir.
func NewDirFrameSource(dir string) *DirFrameSource {
	return &DirFrameSource{dir: ExpandPath(dir)}
}

var frameExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// CheckPermission reports whether the spool directory can be listed.
func (s *DirFrameSource) CheckPermission(ctx context.Context) error {
	if s.dir == "" {
		return fmt.Errorf("%w: capture.source_dir is empty", ErrPermissionDenied)
	}
	f, err := os.Open(s.dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	if !st.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrPermissionDenied, s.dir)
	}
	return nil
}

// Acquire reads the most recently modified frame file.
func (s *DirFrameSource) Acquire(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrAcquisition, err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: read dir: %v", ErrAcquisition, err)
	}

	var (
		newest   string
		newestAt time.Time
	)
	for _, e := range entries {
		if e.IsDir() || !frameExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestAt) {
			newest = e.Name()
			newestAt = info.ModTime()
		}
	}
	if newest == "" {
		return Frame{}, fmt.Errorf("%w: no capture source active in %s", ErrAcquisition, s.dir)
	}

	path := filepath.Join(s.dir, newest)
	data, err := os.ReadFile(path)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: read frame: %v", ErrAcquisition, err)
	}

	return Frame{
		TraceID:    uuid.NewString(),
		Data:       data,
		CapturedAt: newestAt,
		Source:     path,
	}, nil
}
