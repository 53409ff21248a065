package session

import "time"

// Timer is a pending scheduled call.
type Timer interface {
	// Stop prevents the call from firing. It reports false if the call already fired or was stopped.
	Stop() bool
}

// Scheduler runs delayed calls and tells the time.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

func (wallClock) Now() time.Time { return time.Now() }
