// Package idle implements the latched-flag handshake between the backend's
// "ISR" context and the cooperative mainloop: RegisterEvent/WaitForEvent.
// The read-and-sleep window must be atomic with respect to a concurrent
// RegisterEvent, or the classic lost-wakeup results.
//
// Go has no disable-interrupts/enable-on-wake primitive, so the atomic
// "test flag, sleep only if still unset" discipline is built from an
// atomic flag plus a buffered (capacity-1) channel: the flag is the
// durable record of "an event happened since we last checked", the
// channel is only used to park the waiter without a busy loop.
package idle

import "sync/atomic"

// Flag is a single latched event flag. The zero value is ready to use.
type Flag struct {
	latched atomic.Bool
	wake    chan struct{}
}

// NewFlag constructs a ready-to-use Flag. Using the zero value directly
// also works as long as RegisterEvent's first call lazily allocates wake;
// NewFlag avoids that lazy-init branch.
func NewFlag() *Flag {
	return &Flag{wake: make(chan struct{}, 1)}
}

func (f *Flag) channel() chan struct{} {
	if f.wake == nil {
		// Only reachable for a Flag built with the zero value rather than
		// NewFlag; harmless racing allocation since the buffered channel
		// is only ever used as a best-effort wake nudge, not as the
		// source of truth (latched is).
		f.wake = make(chan struct{}, 1)
	}
	return f.wake
}

// RegisterEvent is called from ISR/backend-callback context by any wake
// source. It latches the flag and nudges a parked WaitForEvent without
// blocking.
func (f *Flag) RegisterEvent() {
	f.latched.Store(true)
	select {
	case f.channel() <- struct{}{}:
	default:
	}
}

// WaitForEvent blocks until an event has been latched, then clears the
// latch and returns. If the flag is already latched when called, it
// returns immediately: there is no window between "check the flag" and
// "go to sleep" in which a RegisterEvent can be missed, because
// RegisterEvent sets latched before it ever touches the channel.
func (f *Flag) WaitForEvent() {
	for {
		if f.latched.CompareAndSwap(true, false) {
			return
		}
		<-f.channel()
	}
}

// Default is the package-wide Flag instance the rest of this repository
// uses: a given process has exactly one idle routine.
var Default = NewFlag()

// RegisterEvent latches Default.
func RegisterEvent() { Default.RegisterEvent() }

// WaitForEvent waits on Default.
func WaitForEvent() { Default.WaitForEvent() }
