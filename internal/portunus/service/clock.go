package service

import "time"

// Clock abstracts wall-clock time so the cool-down and toast expiry can be
// driven deterministically in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the real UTC wall clock.
func SystemClock() Clock { return systemClock{} }
