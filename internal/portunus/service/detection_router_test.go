package service_test

import (
	"context"
	"image"
	"strings"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/metrics"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/service"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

func frame(seq int64) types.Frame { return types.Frame{Seq: seq} }

func mustRegister(t *testing.T, e *engine, name, category, code string) types.Identity {
	t.Helper()
	id, err := e.store.RegisterIdentity(context.Background(), name, category, code)
	if err != nil {
		t.Fatalf("register %s: %v", code, err)
	}
	return id
}

// singleEvent fails unless res carries exactly one event of kind.
func singleEvent(t *testing.T, res service.FrameResult, kind types.EventKind) service.RecordedEvent {
	t.Helper()
	if len(res.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(res.Events))
	}
	if got := res.Events[0].Event.Kind; got != kind {
		t.Fatalf("expected %s, got %s", kind, got)
	}
	return res.Events[0]
}

func singleOverlay(t *testing.T, res service.FrameResult, status service.OverlayStatus) service.Overlay {
	t.Helper()
	if len(res.Overlays) != 1 {
		t.Fatalf("expected 1 overlay, got %d", len(res.Overlays))
	}
	if got := res.Overlays[0].Status; got != status {
		t.Fatalf("expected overlay %s, got %s", status, got)
	}
	return res.Overlays[0]
}

func TestRouter_EntrySuppressedThenExit(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	mustRegister(t, e, "Ana", "car", "ABC123")

	e.badge.Set(det("ABC123"))

	// t=0: entry.
	res := e.router.ProcessFrame(ctx, frame(1))
	singleEvent(t, res, types.EventEntry)
	if res.Notification == nil {
		t.Fatalf("expected a notification")
	}
	if res.Notification.Color != service.ColorEntry || res.Notification.Text != "Ana (ENTRY) [ABC123]" {
		t.Fatalf("unexpected notification %+v", res.Notification)
	}
	if o := singleOverlay(t, res, service.OverlayRecorded); o.Label != "Ana" {
		t.Fatalf("expected overlay label Ana, got %q", o.Label)
	}

	// t=10s: inside the window, nothing new.
	e.clock.Advance(10 * time.Second)
	res = e.router.ProcessFrame(ctx, frame(2))
	if len(res.Events) != 0 || len(e.mem.Events()) != 1 {
		t.Fatalf("expected suppression at +10s, got %d new events", len(res.Events))
	}

	// t=65s: exit.
	e.clock.Advance(55 * time.Second)
	res = e.router.ProcessFrame(ctx, frame(3))
	singleEvent(t, res, types.EventExit)
	if res.Notification == nil || res.Notification.Color != service.ColorExit {
		t.Fatalf("expected exit notification, got %+v", res.Notification)
	}
}

func TestRouter_UnregisteredCodeIsNeverLogged(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	e.badge.Set(det("ZZZ999"))

	res := e.router.ProcessFrame(ctx, frame(1))

	if len(res.Events) != 0 {
		t.Fatalf("expected no events, got %d", len(res.Events))
	}
	if o := singleOverlay(t, res, service.OverlayUnregistered); o.Label != "unregistered" {
		t.Fatalf("expected label unregistered, got %q", o.Label)
	}
	if res.Notification != nil {
		t.Fatalf("expected no notification, got %+v", res.Notification)
	}

	rows, err := e.store.ListEvents(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty log, got %d rows", len(rows))
	}

	// Unknown codes never start a cool-down; registering one makes it
	// count on the very next frame.
	mustRegister(t, e, "Zed", "car", "ZZZ999")
	res = e.router.ProcessFrame(ctx, frame(2))
	singleEvent(t, res, types.EventEntry)
}

func TestRouter_TwoIdentitiesSameFrame(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	mustRegister(t, e, "Ana", "car", "AAA111")
	mustRegister(t, e, "Bo", "moto", "BBB222")

	e.badge.Set(det("AAA111"), det("BBB222"))
	res := e.router.ProcessFrame(ctx, frame(1))

	if len(res.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(res.Events))
	}
	for _, ev := range res.Events {
		if ev.Event.Kind != types.EventEntry {
			t.Fatalf("%s: expected entry, got %s", ev.Identity.Code, ev.Event.Kind)
		}
	}
	// Newest notification wins.
	if res.Notification == nil || !strings.Contains(res.Notification.Text, "BBB222") {
		t.Fatalf("expected BBB222 notification, got %+v", res.Notification)
	}

	// Bo is still cooling down at +30s.
	e.clock.Advance(30 * time.Second)
	e.badge.Set(det("BBB222"))
	if res = e.router.ProcessFrame(ctx, frame(2)); len(res.Events) != 0 {
		t.Fatalf("expected BBB222 suppressed at +30s")
	}

	e.clock.Advance(31 * time.Second)
	e.badge.Set(det("AAA111"))
	res = e.router.ProcessFrame(ctx, frame(3))
	if ev := singleEvent(t, res, types.EventExit); ev.Identity.Code != "AAA111" {
		t.Fatalf("expected AAA111, got %s", ev.Identity.Code)
	}
}

func TestRouter_BadgeAndFaceAreIndependentChannels(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	mustRegister(t, e, "Ana", "staff", "ANA_LOPEZ")

	e.badge.Set(det("ANA_LOPEZ"))
	e.face.Set(types.Detection{Key: "ANA_LOPEZ", Confidence: 40})

	res := e.router.ProcessFrame(ctx, frame(1))

	if len(res.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(res.Events))
	}
	if ev := res.Events[0].Event; ev.Channel != types.ChannelBadge || ev.Kind != types.EventEntry {
		t.Fatalf("expected badge entry first, got %+v", ev)
	}
	if ev := res.Events[1].Event; ev.Channel != types.ChannelFace || ev.Kind != types.EventExit {
		t.Fatalf("expected face exit second, got %+v", ev)
	}
}

func TestRouter_RejectedFaceRendersUnknown(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	mustRegister(t, e, "Ana", "staff", "ANA_LOPEZ")

	e.face.Set(types.Detection{Key: "ANA_LOPEZ", Confidence: 95, Rejected: true})
	res := e.router.ProcessFrame(ctx, frame(1))

	if len(res.Events) != 0 {
		t.Fatalf("expected no events, got %d", len(res.Events))
	}
	if o := singleOverlay(t, res, service.OverlayUnknown); o.Label != "unknown" {
		t.Fatalf("expected label unknown, got %q", o.Label)
	}
}

func TestRouter_UnlabelledFaceRendersUnknown(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	region := image.Rect(5, 5, 40, 40)
	e.face.Set(types.Detection{Key: "  ", Confidence: 30, Region: region})
	res := e.router.ProcessFrame(ctx, frame(1))

	if len(res.Events) != 0 {
		t.Fatalf("expected no events, got %d", len(res.Events))
	}
	o := singleOverlay(t, res, service.OverlayUnknown)
	if o.Region != region || o.Color != service.ColorUnknown || o.Channel != types.ChannelFace {
		t.Fatalf("unexpected overlay %+v", o)
	}
}

func TestRouter_StorageFailureDoesNotStartCooldown(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	mustRegister(t, e, "Ana", "car", "ABC123")

	e.badge.Set(det("ABC123"))
	e.mem.FailWrites = errDiskFull

	res := e.router.ProcessFrame(ctx, frame(1))
	if len(res.Events) != 0 {
		t.Fatalf("expected no events, got %d", len(res.Events))
	}
	singleOverlay(t, res, service.OverlayFailed)
	if res.Notification != nil {
		t.Fatalf("expected no notification, got %+v", res.Notification)
	}

	// Storage recovers one second later: the retry goes through at once.
	e.mem.FailWrites = nil
	e.clock.Advance(time.Second)
	singleEvent(t, e.router.ProcessFrame(ctx, frame(2)), types.EventEntry)
}

func TestRouter_SourceErrorSkipsOnlyThatChannel(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	mustRegister(t, e, "Ana", "staff", "ANA_LOPEZ")

	e.badge.err = errDiskFull
	e.face.Set(types.Detection{Key: "ANA_LOPEZ", Confidence: 10})

	ev := singleEvent(t, e.router.ProcessFrame(ctx, frame(1)), types.EventEntry)
	if ev.Event.Channel != types.ChannelFace {
		t.Fatalf("expected face event, got %s", ev.Event.Channel)
	}
}

func TestRouter_NotificationSampledWithoutDetections(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	mustRegister(t, e, "Ana", "car", "ABC123")

	e.badge.Set(det("ABC123"))
	e.router.ProcessFrame(ctx, frame(1))

	e.badge.Set()
	e.clock.Advance(time.Second)
	if res := e.router.ProcessFrame(ctx, frame(2)); res.Notification == nil {
		t.Fatalf("toast is still on screen at +1s")
	}

	e.clock.Advance(2 * time.Second)
	if res := e.router.ProcessFrame(ctx, frame(3)); res.Notification != nil {
		t.Fatalf("expected toast gone at +3s, got %+v", res.Notification)
	}
}

type captureMirror struct{ lines []string }

func (m *captureMirror) Enqueue(line string) bool {
	m.lines = append(m.lines, line)
	return true
}

func TestRouter_MirrorsAndCountsAcceptedEvents(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	mustRegister(t, e, "Ana", "car", "ABC123")

	m := metrics.New()
	mirror := &captureMirror{}
	router := service.NewDetectionRouter(service.RouterDeps{
		Store:   e.store,
		Bus:     e.bus,
		Clock:   e.clock,
		Logger:  silentLogger(),
		Metrics: m,
		Mirror:  mirror,
	}, service.Channel{Source: e.badge, Gate: service.NewDedupGate(time.Minute)})

	e.badge.Set(det("ABC123"), det("NOPE"))
	router.ProcessFrame(ctx, frame(1))
	router.ProcessFrame(ctx, frame(2))

	if len(mirror.lines) != 1 {
		t.Fatalf("expected 1 mirror line, got %d", len(mirror.lines))
	}
	if want := "Identity detected: Ana, Time: 2026-02-15 12:00:00,Entry\n"; mirror.lines[0] != want {
		t.Fatalf("expected %q, got %q", want, mirror.lines[0])
	}

	counters := []struct {
		name string
		got  float64
		want float64
	}{
		{"accepted", promtest.ToFloat64(m.Detections.WithLabelValues(types.ChannelBadge, metrics.OutcomeAccepted)), 1},
		{"suppressed", promtest.ToFloat64(m.Detections.WithLabelValues(types.ChannelBadge, metrics.OutcomeSuppressed)), 1},
		{"unregistered", promtest.ToFloat64(m.Detections.WithLabelValues(types.ChannelBadge, metrics.OutcomeUnregistered)), 2},
		{"entry events", promtest.ToFloat64(m.EventsRecorded.WithLabelValues(types.ChannelBadge, "entry")), 1},
	}
	for _, c := range counters {
		if c.got != c.want {
			t.Fatalf("%s: expected %v, got %v", c.name, c.want, c.got)
		}
	}
}
