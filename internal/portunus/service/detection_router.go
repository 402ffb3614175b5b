package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log"
	"strings"
	"time"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/metrics"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

var (
	ColorEntry   = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	ColorExit    = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	ColorUnknown = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	ColorFailed  = color.RGBA{R: 255, G: 165, B: 0, A: 255}
)

// KindColor is the notification and marker color for an event kind.
func KindColor(k types.EventKind) color.RGBA {
	if k == types.EventExit {
		return ColorExit
	}
	return ColorEntry
}

// DetectionSource is one identity channel (badge or face).  Detect returns
// every detection in the frame; a face below the confidence bar comes back
// with Rejected set.
type DetectionSource interface {
	Channel() string
	Detect(ctx context.Context, frame types.Frame) ([]types.Detection, error)
}

// MirrorSink receives best-effort plain-text copies of recorded events.
type MirrorSink interface {
	Enqueue(line string) bool
}

// identityEvents is the part of EventStore the router needs.
type identityEvents interface {
	FindByCode(ctx context.Context, code string) (types.Identity, error)
	RecordEvent(ctx context.Context, id types.Identity, channel string) (types.AccessEvent, error)
}

type OverlayStatus string

const (
	OverlayRecorded     OverlayStatus = "recorded"
	OverlayUnregistered OverlayStatus = "unregistered"
	OverlayUnknown      OverlayStatus = "unknown"
	OverlayFailed       OverlayStatus = "failed"
)

// Overlay is a marker for the rendering surface.
type Overlay struct {
	Channel string
	Region  image.Rectangle
	Label   string
	Color   color.RGBA
	Status  OverlayStatus
}

type RecordedEvent struct {
	Identity types.Identity
	Event    types.AccessEvent
}

// FrameResult is everything the rendering surface needs for one frame.
type FrameResult struct {
	Overlays     []Overlay
	Events       []RecordedEvent
	Notification *Notification
}

// Channel pairs a detection source with its own dedup gate.
type Channel struct {
	Source DetectionSource
	Gate   *DedupGate
}

type RouterDeps struct {
	Store   identityEvents
	Bus     *NotificationBus
	Clock   Clock
	Logger  *log.Logger
	Metrics *metrics.Metrics // optional
	Mirror  MirrorSink       // optional

	ToastDuration time.Duration
}

// DetectionRouter turns raw per-frame detections into access events.  It is
// driven by a single frame loop; ProcessFrame is not meant to be called
// concurrently with itself.
type DetectionRouter struct {
	store    identityEvents
	bus      *NotificationBus
	clock    Clock
	logger   *log.Logger
	metrics  *metrics.Metrics
	mirror   MirrorSink
	toast    time.Duration
	channels []Channel
}

func NewDetectionRouter(d RouterDeps, channels ...Channel) *DetectionRouter {
	if d.Clock == nil {
		d.Clock = SystemClock()
	}
	if d.ToastDuration <= 0 {
		d.ToastDuration = DefaultToastDuration
	}
	return &DetectionRouter{
		store:    d.Store,
		bus:      d.Bus,
		clock:    d.Clock,
		logger:   d.Logger,
		metrics:  d.Metrics,
		mirror:   d.Mirror,
		toast:    d.ToastDuration,
		channels: channels,
	}
}

// ProcessFrame runs every channel over frame and samples the notification
// bus afterwards, whether or not anything was detected.  Errors never escape:
// a failing source or store only degrades this frame.
func (r *DetectionRouter) ProcessFrame(ctx context.Context, frame types.Frame) FrameResult {
	var res FrameResult

	for i := range r.channels {
		ch := &r.channels[i]
		dets, err := ch.Source.Detect(ctx, frame)
		if err != nil {
			r.logger.Printf("detect channel=%s frame=%d: %v", ch.Source.Channel(), frame.Seq, err)
			continue
		}
		for _, det := range dets {
			r.route(ctx, ch, det, &res)
		}
	}

	if n, ok := r.bus.Current(r.clock.Now()); ok {
		res.Notification = &n
	}
	return res
}

func (r *DetectionRouter) route(ctx context.Context, ch *Channel, det types.Detection, res *FrameResult) {
	name := ch.Source.Channel()

	// Rejected and unlabelled detections are still drawn, as unknown.
	key := types.NormalizeCode(det.Key)
	if det.Rejected || key == "" {
		r.observe(name, metrics.OutcomeRejected)
		res.Overlays = append(res.Overlays, Overlay{
			Channel: name, Region: det.Region, Label: "unknown",
			Color: ColorUnknown, Status: OverlayUnknown,
		})
		return
	}

	now := r.clock.Now()
	if !ch.Gate.Allow(key, now) {
		r.observe(name, metrics.OutcomeSuppressed)
		return
	}

	id, err := r.store.FindByCode(ctx, key)
	if errors.Is(err, types.ErrNotFound) {
		r.observe(name, metrics.OutcomeUnregistered)
		res.Overlays = append(res.Overlays, Overlay{
			Channel: name, Region: det.Region, Label: unregisteredLabel(name),
			Color: ColorUnknown, Status: OverlayUnregistered,
		})
		return
	}
	if err != nil {
		r.fail(name, key, det.Region, "lookup", err, res)
		return
	}

	// A stop signal must not abandon a write that has already been queued.
	ev, err := r.store.RecordEvent(context.WithoutCancel(ctx), id, name)
	if err != nil {
		r.fail(name, key, det.Region, "record", err, res)
		return
	}

	// The cool-down starts only once the event is stored.
	ch.Gate.Mark(key, now)

	r.observe(name, metrics.OutcomeAccepted)
	if r.metrics != nil {
		r.metrics.ObserveEvent(name, string(ev.Kind))
	}

	c := KindColor(ev.Kind)
	r.bus.Publish(
		fmt.Sprintf("%s (%s) [%s]", id.Name, strings.ToUpper(ev.Kind.Label()), id.Code),
		c, r.toast,
	)

	res.Events = append(res.Events, RecordedEvent{Identity: id, Event: ev})
	res.Overlays = append(res.Overlays, Overlay{
		Channel: name, Region: det.Region, Label: id.Name,
		Color: c, Status: OverlayRecorded,
	})

	r.logger.Printf("%s detected: %s (%s) [%s] at %s",
		name, id.Name, ev.Kind.Label(), id.Code, ev.OccurredAt.Format(types.TimestampLayout))
	if r.mirror != nil {
		r.mirror.Enqueue(MirrorLine(id, ev))
	}
}

func (r *DetectionRouter) fail(channel, key string, region image.Rectangle, op string, err error, res *FrameResult) {
	r.observe(channel, metrics.OutcomeFailed)
	if r.metrics != nil {
		r.metrics.ObserveStorageError(channel)
	}
	r.logger.Printf("%s %s failed code=%s: %v", channel, op, key, err)
	res.Overlays = append(res.Overlays, Overlay{
		Channel: channel, Region: region, Label: key,
		Color: ColorFailed, Status: OverlayFailed,
	})
}

func (r *DetectionRouter) observe(channel, outcome string) {
	if r.metrics != nil {
		r.metrics.ObserveDetection(channel, outcome)
	}
}

func unregisteredLabel(channel string) string {
	if channel == types.ChannelFace {
		return "unknown"
	}
	return "unregistered"
}
