package systime

import (
	"fmt"

	"github.com/james-orcales/softtimer/hwcounter"
)

// Errno classifies the two error kinds the POSIX veneer can raise. It is
// deliberately small: this veneer is a thin adapter over the clock and
// timer packages, not core logic, so it only needs to be able to say
// "bad argument" or "bad pointer".
type Errno int

const (
	// EINVAL: unknown clock id, nanos >= 1e9, or usec >= 1e6.
	EINVAL Errno = iota + 1
	// EFAULT: a required output pointer was nil.
	EFAULT
)

func (e Errno) Error() string {
	switch e {
	case EINVAL:
		return "invalid argument"
	case EFAULT:
		return "bad address"
	default:
		return fmt.Sprintf("systime: unknown errno %d", int(e))
	}
}

// ClockID identifies which clock a posix call addresses.
type ClockID int

const (
	ClockRealtime ClockID = iota
	ClockMonotonic
)

func validClockID(id ClockID) bool {
	return id == ClockRealtime || id == ClockMonotonic
}

func nowFor(id ClockID) hwcounter.Timestamp {
	if id == ClockMonotonic {
		return MonotonicNow()
	}
	return RealtimeNow()
}

// ClockGettime fills *out with the current reading of clock id. Returns
// EINVAL for an unknown clock id, EFAULT if out is nil.
func ClockGettime(id ClockID, out *hwcounter.Timestamp) error {
	if out == nil {
		return EFAULT
	}
	if !validClockID(id) {
		return EINVAL
	}
	*out = nowFor(id)
	return nil
}

// ClockSettime sets the real-time clock. Only ClockRealtime may be set;
// setting ClockMonotonic is always EINVAL, matching every POSIX
// implementation's refusal to let user space rewrite monotonic time.
// Returns EINVAL if ts.Nanos >= 1e9.
func ClockSettime(id ClockID, ts hwcounter.Timestamp) error {
	if id != ClockRealtime {
		return EINVAL
	}
	if ts.Nanos >= 1_000_000_000 {
		return EINVAL
	}
	SetRealtime(ts)
	return nil
}

// ClockGetres fills *out with the backend's resolution. Returns EINVAL for
// an unknown clock id, EFAULT if out is nil.
func ClockGetres(id ClockID, out *hwcounter.Timestamp) error {
	if out == nil {
		return EFAULT
	}
	if !validClockID(id) {
		return EINVAL
	}
	*out = Resolution()
	return nil
}

// Timeval mirrors the POSIX struct timeval: seconds plus microseconds.
type Timeval struct {
	Sec  uint32
	Usec uint32
}

// Gettimeofday fills *out with the current real time. Returns EFAULT if out
// is nil.
func Gettimeofday(out *Timeval) error {
	if out == nil {
		return EFAULT
	}
	ts := RealtimeNow()
	out.Sec = ts.Sec
	out.Usec = ts.Nanos / 1000
	return nil
}

// Settimeofday sets the real-time clock from tv. Returns EINVAL if
// tv.Usec >= 1e6.
func Settimeofday(tv Timeval) error {
	if tv.Usec >= 1_000_000 {
		return EINVAL
	}
	SetRealtime(hwcounter.Timestamp{Sec: tv.Sec, Nanos: tv.Usec * 1000})
	return nil
}

// Time returns the current real time in whole seconds, the POSIX time()
// call.
func Time() uint32 {
	return RealtimeNow().Sec
}
