package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/metrics"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

// MirrorWriter appends a plain-text copy of each recorded event to a side
// log.  Delivery is best-effort: Enqueue never blocks and drops the line when
// the queue is full, and lines still queued at Stop are discarded.  The
// database remains the record of truth.
type MirrorWriter struct {
	out     io.Writer
	queue   chan string
	logger  *log.Logger
	metrics *metrics.Metrics

	dropped atomic.Int64
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// MirrorConfig holds the parameters for NewMirrorWriter.
type MirrorConfig struct {
	// QueueSize bounds the number of pending lines.  Defaults to 128.
	QueueSize int
}

// NewMirrorWriter creates a writer but does not start it.  A nil out
// disables mirroring; Enqueue then always reports false.
func NewMirrorWriter(out io.Writer, cfg MirrorConfig, logger *log.Logger, m *metrics.Metrics) *MirrorWriter {
	size := cfg.QueueSize
	if size <= 0 {
		size = 128
	}
	return &MirrorWriter{
		out:     out,
		queue:   make(chan string, size),
		logger:  logger,
		metrics: m,
		done:    make(chan struct{}),
	}
}

// MirrorLine renders one event the way the side log has always looked.
func MirrorLine(id types.Identity, ev types.AccessEvent) string {
	return fmt.Sprintf("Identity detected: %s, Time: %s,%s\n",
		id.Name, ev.OccurredAt.Format(types.TimestampLayout), ev.Kind.Label())
}

// Start begins the background write loop.  The loop exits when ctx is
// cancelled or Stop is called.
func (w *MirrorWriter) Start(ctx context.Context) {
	w.started = true
	if w.out == nil {
		w.logger.Printf("mirror log disabled")
		close(w.done)
		return
	}

	ctx, w.cancel = context.WithCancel(ctx)
	go w.loop(ctx)

	w.logger.Printf("mirror log started (queue=%d)", cap(w.queue))
}

// Stop signals the loop to exit and waits for it.  Pending lines are dropped.
func (w *MirrorWriter) Stop() {
	w.once.Do(func() {
		switch {
		case !w.started:
			close(w.done)
		case w.cancel != nil:
			w.cancel()
		}
	})
	<-w.done
}

// Enqueue hands line to the background writer.  It returns false when the
// line was dropped.
func (w *MirrorWriter) Enqueue(line string) bool {
	if w.out == nil {
		return false
	}
	select {
	case w.queue <- line:
		return true
	default:
		w.dropped.Add(1)
		if w.metrics != nil {
			w.metrics.MirrorDropped.Inc()
		}
		return false
	}
}

// Dropped returns the number of lines dropped because the queue was full.
func (w *MirrorWriter) Dropped() int64 { return w.dropped.Load() }

func (w *MirrorWriter) loop(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case line := <-w.queue:
			if ctx.Err() != nil {
				return
			}
			if _, err := io.WriteString(w.out, line); err != nil {
				w.logger.Printf("mirror write error: %v", err)
			}
		}
	}
}
