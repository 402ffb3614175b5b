package capture

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

// DirSource replays the image files of a directory as a capture session,
// in lexical order, then reports types.ErrSourceClosed.
type DirSource struct {
	files    []string
	interval time.Duration
	next     int
	now      func() time.Time
}

// OpenDir lists the png/jpeg frames in dir.  interval paces playback; zero
// replays as fast as frames are processed.
func OpenDir(dir string, interval time.Duration) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("open frames dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	return &DirSource{
		files:    files,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *DirSource) Len() int { return len(s.files) }

func (s *DirSource) Next(ctx context.Context) (types.Frame, error) {
	if s.next >= len(s.files) {
		return types.Frame{}, types.ErrSourceClosed
	}

	if s.interval > 0 && s.next > 0 {
		t := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return types.Frame{}, ctx.Err()
		case <-t.C:
		}
	}

	path := s.files[s.next]
	s.next++

	img, err := decodeFile(path)
	if err != nil {
		return types.Frame{}, err
	}
	return types.Frame{
		Seq:   int64(s.next),
		Path:  path,
		Image: img,
		At:    s.now(),
	}, nil
}

func (s *DirSource) Close() error {
	s.next = len(s.files)
	return nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", path, err)
	}
	return img, nil
}
