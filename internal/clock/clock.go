// Package clock lets the scheduler and admission code read time through an
// injectable source so expiry can be tested without sleeping.
package clock

import "time"

type Clock interface {
	Now() time.Time
	// AfterFunc calls f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
	After(d time.Duration) <-chan time.Time
}

type Timer interface {
	// Stop reports whether it prevented f from running.
	Stop() bool
}

type realClock struct{}

func Real() Clock { return realClock{} }

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
