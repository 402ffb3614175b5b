package service

import (
	"image/color"
	"sync"
	"time"
)

// DefaultToastDuration is how long a notification stays on screen.
const DefaultToastDuration = 2500 * time.Millisecond

// Notification is the single on-screen status message.
type Notification struct {
	Text      string
	Color     color.RGBA
	ExpiresAt time.Time
}

// Active reports whether the notification is still visible at now.
func (n Notification) Active(now time.Time) bool {
	return now.Before(n.ExpiresAt)
}

// NotificationBus holds at most one notification.  Publish always replaces
// the current one, even if the older one would have lasted longer.
type NotificationBus struct {
	clock Clock

	mu      sync.Mutex
	current Notification
}

func NewNotificationBus(clock Clock) *NotificationBus {
	if clock == nil {
		clock = SystemClock()
	}
	return &NotificationBus{clock: clock}
}

func (b *NotificationBus) Publish(text string, c color.RGBA, d time.Duration) {
	if d <= 0 {
		d = DefaultToastDuration
	}
	n := Notification{
		Text:      text,
		Color:     c,
		ExpiresAt: b.clock.Now().Add(d),
	}

	b.mu.Lock()
	b.current = n
	b.mu.Unlock()
}

// Current returns the active notification, or false once now >= expiry.
func (b *NotificationBus) Current(now time.Time) (Notification, bool) {
	b.mu.Lock()
	n := b.current
	b.mu.Unlock()

	if !n.Active(now) {
		return Notification{}, false
	}
	return n, true
}
