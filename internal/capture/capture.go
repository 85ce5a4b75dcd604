// Package capture feeds frames from a source into recognition at a
// bounded rate, dropping frames while a recognition call is in flight.
package capture

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/scanlock/internal/model"
)

// Source produces frames in capture order. Next returns io.EOF once the
// source is exhausted.
type Source interface {
	Next(ctx context.Context) (model.Frame, error)
}

// DirSource walks a directory of image files in lexical order, optionally
// looping back to the first frame when it runs out.
type DirSource struct {
	paths []string
	pos   int
	loop  bool
	now   func() time.Time
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// NewDirSource lists image files under dir. It fails when the directory
// holds no frames at all.
func NewDirSource(dir string, loop bool) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "capture: read frame directory %s", dir)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, eris.Errorf("capture: no image frames in %s", dir)
	}
	sort.Strings(paths)

	return &DirSource{paths: paths, loop: loop, now: time.Now}, nil
}

// Next returns the following frame, or io.EOF when the directory is
// exhausted and looping is off.
func (s *DirSource) Next(ctx context.Context) (model.Frame, error) {
	if err := ctx.Err(); err != nil {
		return model.Frame{}, err
	}
	if s.pos >= len(s.paths) {
		if !s.loop {
			return model.Frame{}, io.EOF
		}
		s.pos = 0
	}

	frame := model.Frame{
		ID:         uuid.NewString(),
		Path:       s.paths[s.pos],
		CapturedAt: s.now(),
	}
	s.pos++
	return frame, nil
}
