package service

import "time"

// Clock supplies the current time so transition timestamps and date-based
// guards stay deterministic in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// NewRealClock returns a Clock backed by the wall clock (UTC).
func NewRealClock() Clock { return realClock{} }

// FixedClock always reports the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }
