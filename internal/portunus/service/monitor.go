package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/metrics"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

// ErrStopRequested is returned by a Renderer to end the session, the way a
// close button or ESC key would.
var ErrStopRequested = errors.New("stop requested")

// FrameSource yields frames for one session.  Next returns
// types.ErrSourceClosed when the source is exhausted or disconnected.
type FrameSource interface {
	Next(ctx context.Context) (types.Frame, error)
	Close() error
}

// Renderer consumes each processed frame.
type Renderer interface {
	Render(frame types.Frame, res FrameResult) error
}

// StatusReporter is told when a session starts and stops serving.
type StatusReporter interface {
	SetServing(serving bool)
}

type Monitor struct {
	router  *DetectionRouter
	logger  *log.Logger
	metrics *metrics.Metrics
	status  StatusReporter
}

func NewMonitor(router *DetectionRouter, logger *log.Logger, m *metrics.Metrics, status StatusReporter) *Monitor {
	return &Monitor{router: router, logger: logger, metrics: m, status: status}
}

// Run drives one capture session until ctx is cancelled, the renderer asks
// to stop, or the source closes.  A closed source ends the session cleanly
// (nil error); any other source failure ends the session with an error but
// leaves the process free to start another one.
//
// Every write is finished inside ProcessFrame before the next frame is read,
// so returning never abandons an event mid-write.
func (m *Monitor) Run(ctx context.Context, src FrameSource, r Renderer) (err error) {
	session := uuid.NewString()
	m.logger.Printf("session %s started", session)

	m.setServing(true)
	defer func() {
		m.setServing(false)
		if cerr := src.Close(); cerr != nil {
			m.logger.Printf("session %s: close source: %v", session, cerr)
		}
		m.logger.Printf("session %s ended err=%v", session, err)
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := src.Next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, types.ErrSourceClosed):
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("capture source: %w", err)
		}

		res := m.router.ProcessFrame(ctx, frame)
		if m.metrics != nil {
			m.metrics.FramesProcessed.Inc()
		}

		if r == nil {
			continue
		}
		if err := r.Render(frame, res); err != nil {
			if errors.Is(err, ErrStopRequested) {
				return nil
			}
			m.logger.Printf("session %s: render frame %d: %v", session, frame.Seq, err)
		}
	}
}

func (m *Monitor) setServing(serving bool) {
	if m.status != nil {
		m.status.SetServing(serving)
	}
	if m.metrics != nil {
		if serving {
			m.metrics.SessionsActive.Set(1)
		} else {
			m.metrics.SessionsActive.Set(0)
		}
	}
}
