// Package hwcounter models the single hardware compare-match counter
// peripheral that the rest of this repository is built on: a free-running
// counter at a fixed frequency, widened by a software overflow counter, with
// one channel capable of arming a relative one-shot callback.
//
// Two Descriptor implementations are provided: Software, a simulated
// narrow-width counter usable on any platform and driveable in virtual time
// for tests, and the Linux-only backend in linux.go built on a real
// timerfd.
package hwcounter

import (
	"fmt"

	"github.com/james-orcales/softtimer/invariant"
)

// Timestamp is a normalized (seconds, nanoseconds) pair. Nanos is always in
// [0, 1e9). The zero value represents "unset".
type Timestamp struct {
	Sec   uint32
	Nanos uint32
}

const nanosPerSecond = 1_000_000_000

// Normalize folds Nanos back into [0, 1e9), carrying overflow into Sec. It
// panics (via invariant.Always) on Sec overflow, which callers must prevent.
func Normalize(sec uint32, nanos uint64) Timestamp {
	carry := nanos / nanosPerSecond
	invariant.Always(uint64(sec)+carry <= 0xFFFFFFFF, "Normalize: seconds field overflows uint32")
	return Timestamp{Sec: sec + uint32(carry), Nanos: uint32(nanos % nanosPerSecond)}
}

// String renders ts as "<sec>.<nanos>s", mainly for logging.
func (ts Timestamp) String() string {
	return fmt.Sprintf("%d.%09ds", ts.Sec, ts.Nanos)
}

// IsZero reports whether ts is the "unset" sentinel.
func (ts Timestamp) IsZero() bool {
	return ts.Sec == 0 && ts.Nanos == 0
}

// Compare returns -1, 0, or 1 as ts is less than, equal to, or greater than
// other.
func (ts Timestamp) Compare(other Timestamp) int {
	switch {
	case ts.Sec != other.Sec:
		if ts.Sec < other.Sec {
			return -1
		}
		return 1
	case ts.Nanos != other.Nanos:
		if ts.Nanos < other.Nanos {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// Add returns ts + other, normalized.
func (ts Timestamp) Add(other Timestamp) Timestamp {
	return Normalize(ts.Sec+other.Sec, uint64(ts.Nanos)+uint64(other.Nanos))
}

// Sub returns ts - other. The caller guarantees ts >= other; subtraction
// that would go negative is an invariant failure, not a wraparound.
func (ts Timestamp) Sub(other Timestamp) Timestamp {
	invariant.Always(ts.Compare(other) >= 0, "Timestamp.Sub: minuend is less than subtrahend")
	sec := ts.Sec - other.Sec
	nanos := int64(ts.Nanos) - int64(other.Nanos)
	if nanos < 0 {
		nanos += nanosPerSecond
		sec--
	}
	return Timestamp{Sec: sec, Nanos: uint32(nanos)}
}

// Descriptor is the immutable capability bundle a concrete hardware counter
// driver must satisfy. At most one Descriptor is installed process-wide, via
// systime.Init.
type Descriptor interface {
	// Init starts the free-running counter at Frequency(), enables overflow
	// and compare interrupts, and zeroes the overflow counter.
	Init() error

	// Frequency returns F, the fixed tick rate in Hz. Constant for the
	// lifetime of the backend.
	Frequency() uint32

	// MonotonicSeconds returns floor(ticks / F).
	MonotonicSeconds() uint32

	// MonotonicNanos returns the full (sec, nanos) monotonic reading,
	// quantized to 1e9/F ns.
	MonotonicNanos() Timestamp

	// Arm schedules cb to run once, delta in the future (relative time).
	// Overwrites any prior arm. A delta whose Sec component equals or
	// exceeds one overflow period is clamped to immediate (zero-tick) fire.
	Arm(delta Timestamp, cb func())
}
