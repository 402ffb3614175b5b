package service_test

import (
	"context"
	"errors"
	"image"
	"io"
	"log"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/service"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/store/memory"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeBadges records every code it was asked to generate.
type fakeBadges struct {
	mu    sync.Mutex
	codes []string
	err   error
}

func (b *fakeBadges) Generate(code string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	b.codes = append(b.codes, code)
	return "badges/" + code + ".png", nil
}

func (b *fakeBadges) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.codes)
}

// scriptedSource returns the same detections for every frame until changed.
type scriptedSource struct {
	channel string

	mu   sync.Mutex
	dets []types.Detection
	err  error
}

func (s *scriptedSource) Channel() string { return s.channel }

func (s *scriptedSource) Detect(_ context.Context, _ types.Frame) ([]types.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]types.Detection, len(s.dets))
	copy(out, s.dets)
	return out, nil
}

func (s *scriptedSource) Set(dets ...types.Detection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dets = dets
}

func det(key string) types.Detection {
	return types.Detection{Key: key, Region: image.Rect(10, 10, 60, 60)}
}

type engine struct {
	clock  *fakeClock
	mem    *memory.Store
	badges *fakeBadges
	store  *service.EventStore
	bus    *service.NotificationBus
	badge  *scriptedSource
	face   *scriptedSource
	router *service.DetectionRouter
}

// newEngine wires the full detection path over an in-memory store with
// independent 60s gates per channel.
func newEngine() *engine {
	e := &engine{
		clock:  newFakeClock(),
		mem:    memory.New(),
		badges: &fakeBadges{},
		badge:  &scriptedSource{channel: types.ChannelBadge},
		face:   &scriptedSource{channel: types.ChannelFace},
	}
	e.store = service.NewEventStore(service.EventStoreDeps{
		Identities: e.mem,
		Events:     e.mem,
		Badges:     e.badges,
		Clock:      e.clock,
		Logger:     silentLogger(),
	})
	e.bus = service.NewNotificationBus(e.clock)
	e.router = service.NewDetectionRouter(service.RouterDeps{
		Store:  e.store,
		Bus:    e.bus,
		Clock:  e.clock,
		Logger: silentLogger(),
	},
		service.Channel{Source: e.badge, Gate: service.NewDedupGate(60 * time.Second)},
		service.Channel{Source: e.face, Gate: service.NewDedupGate(60 * time.Second)},
	)
	return e
}

var errDiskFull = errors.New("disk full")
