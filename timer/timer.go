// Package timer implements the intrusive, time-ordered software timer
// queue layered on top of systime: the single hardware compare channel is
// always armed for the queue's earliest target, and firing is delivered
// cooperatively from the mainloop rather than from interrupt context.
package timer

import (
	"time"

	"github.com/james-orcales/softtimer/hwcounter"
)

// Timestamp is an alias for hwcounter.Timestamp, used throughout this
// package for started/target fields.
type Timestamp = hwcounter.Timestamp

// Callback is invoked by the timer-manager sweep when a Timer's target has
// passed. It does not return a value; the original C API's integer return
// carried no information callers ever used.
type Callback func(arg any)

// Timer is owned by its creator and borrowed exclusively by this package's
// singleton queue while running: inserted at Start, unlinked at Pause,
// Stop, or by Sweep when it fires. The zero value is not ready for use;
// call InitNoStart or Init first.
type Timer struct {
	running bool
	inQueue bool

	// started is the monotonic instant the current run segment began,
	// floored to 1ms. Pause() also stamps this on suspension so that Start
	// can compute how much of the original delay remains.
	started Timestamp

	// target is the absolute realtime instant the next callback is due.
	// Zero means unset.
	target Timestamp

	timeout  time.Duration
	interval time.Duration // zero means one-shot

	callback Callback
	arg      any

	next, prev *Timer
}
