package capture

import (
	"log"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/service"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

// LogRenderer is the headless rendering surface: it prints overlays and
// each newly shown notification instead of drawing them.
type LogRenderer struct {
	logger   *log.Logger
	lastText string
}

func NewLogRenderer(logger *log.Logger) *LogRenderer {
	return &LogRenderer{logger: logger}
}

func (r *LogRenderer) Render(frame types.Frame, res service.FrameResult) error {
	for _, o := range res.Overlays {
		r.logger.Printf("frame=%d %s [%s] %q at %v", frame.Seq, o.Channel, o.Status, o.Label, o.Region)
	}

	text := ""
	if res.Notification != nil {
		text = res.Notification.Text
	}
	if text != r.lastText && text != "" {
		r.logger.Printf("notification: %s", text)
	}
	r.lastText = text
	return nil
}
