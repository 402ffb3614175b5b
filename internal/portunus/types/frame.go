package types

import (
	"image"
	"time"
)

// Frame is one captured image.  Path is set when the frame was read from
// disk and is used by collaborators that keep per-frame side files.
type Frame struct {
	Seq   int64
	Path  string
	Image image.Image
	At    time.Time
}
