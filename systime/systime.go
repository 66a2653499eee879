// Package systime exposes the monotonic and settable real-time clocks
// layered on top of a single hwcounter.Descriptor, plus a one-shot trigger
// primitive used by the timer package to arm the backend for its queue
// head.
package systime

import (
	"sync"

	"github.com/james-orcales/softtimer/hwcounter"
	"github.com/james-orcales/softtimer/invariant"
	"github.com/james-orcales/softtimer/itlog"
)

var logger = itlog.New(itlog.LevelInfo)

// state is the process-wide clock singleton: a backend reference plus the
// signed offset such that realtime = monotonic + offset. offset is mutated
// only by SetRealtime, from the mainloop.
type state struct {
	mu       sync.Mutex
	backend  hwcounter.Descriptor
	offset   hwcounter.Timestamp
	negative bool // true if offset represents a negative duration
}

var global state

// Init installs backend as the process-wide Descriptor, zeroes the
// real-time offset, and invokes backend.Init(). At most one Descriptor is
// installed for the lifetime of a running process; tests call Init again
// with a fresh backend to get a clean clock for each case.
func Init(backend hwcounter.Descriptor) error {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.backend = backend
	global.offset = hwcounter.Timestamp{}
	global.negative = false
	if err := backend.Init(); err != nil {
		logger.Error(err).Msg("systime.Init: backend init failed")
		return err
	}
	return nil
}

func backend() hwcounter.Descriptor {
	global.mu.Lock()
	b := global.backend
	global.mu.Unlock()
	invariant.Always(b != nil, "systime: backend used before Init")
	return b
}

// MonotonicNow returns the current monotonic timestamp.
func MonotonicNow() hwcounter.Timestamp {
	return backend().MonotonicNanos()
}

// RealtimeNow returns MonotonicNow() + offset.
func RealtimeNow() hwcounter.Timestamp {
	global.mu.Lock()
	offset, negative := global.offset, global.negative
	global.mu.Unlock()

	now := MonotonicNow()
	if negative {
		return now.Sub(offset)
	}
	return now.Add(offset)
}

// SetRealtime sets offset = ts - MonotonicNow(), such that RealtimeNow()
// immediately after this call returns (approximately) ts. This is the only
// mutator of offset.
//
// A large forward SetRealtime jump makes every pending timer (targets are
// realtime) immediately due; a backward jump delays them by the same
// amount. This is intentional: timer targets are not silently re-anchored
// to monotonic time when the wall clock moves. See
// timer.TestSetRealtimeJumpAffectsPendingTimers.
func SetRealtime(ts hwcounter.Timestamp) {
	now := MonotonicNow()

	global.mu.Lock()
	defer global.mu.Unlock()
	if ts.Compare(now) >= 0 {
		global.offset = ts.Sub(now)
		global.negative = false
	} else {
		global.offset = now.Sub(ts)
		global.negative = true
	}
	logger.Info().Msg("systime.SetRealtime: offset updated")
}

// TriggerAt arms the backend to invoke cb at the given absolute realtime
// instant. If that instant has already passed, cb runs synchronously
// before TriggerAt returns. TriggerAt never fails; at worst it fires
// immediately.
func TriggerAt(absoluteRealtime hwcounter.Timestamp, cb func()) {
	now := RealtimeNow()
	if absoluteRealtime.Compare(now) <= 0 {
		cb()
		return
	}

	// absoluteRealtime is in the realtime domain; the backend only
	// understands relative monotonic deltas. offset is stable across this
	// calculation because only the mainloop calls SetRealtime and
	// TriggerAt.
	delta := absoluteRealtime.Sub(now)
	backend().Arm(delta, cb)
}

// Resolution returns (0, 1e9/F), the smallest timestamp difference the
// installed backend can resolve.
func Resolution() hwcounter.Timestamp {
	f := backend().Frequency()
	return hwcounter.Normalize(0, uint64(1_000_000_000)/uint64(f))
}
