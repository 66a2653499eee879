package hwcounter

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/james-orcales/softtimer/invariant"
)

// DefaultFrequency matches a common RTC peripheral: a 32.768 kHz
// crystal-derived tick, the frequency systime and timer are tested
// against.
const DefaultFrequency uint32 = 32768

// DefaultCounterWidth is the width, in bits, of the simulated free-running
// hardware register. 24 bits at 32768 Hz overflows roughly every 512s.
const DefaultCounterWidth uint32 = 24

// Software simulates a narrow free-running counter in virtual time: ticks
// advance only when driven, either by Advance (tests, and both of
// cmd/timersim's subcommands) or by the background goroutine started with
// RunRealtime (standing in for a real crystal oscillator).
//
// register and overflow are read with a double-read-and-retry pattern
// safe for an unsynchronized ISR/reader pair, even though here both sides
// are goroutines rather than an interrupt handler and a thread.
type Software struct {
	frequency   uint32
	counterMask uint32 // (1 << width) - 1
	periodTicks uint64 // 1 << width, one full overflow period

	register atomic.Uint32
	overflow atomic.Uint32

	armMu       sync.Mutex
	armed       bool
	armDeadline uint64 // wide tick count
	armCallback func()

	driveMu   sync.Mutex
	driving   bool
	stopDrive chan struct{}
	doneDrive chan struct{}
}

// NewSoftware constructs a Software backend at DefaultFrequency and
// DefaultCounterWidth. Init must still be called before use.
func NewSoftware() *Software {
	return NewSoftwareWith(DefaultFrequency, DefaultCounterWidth)
}

// NewSoftwareWith constructs a Software backend with an explicit frequency
// and counter width, useful for exercising overflow/arm-clamping behaviour
// deterministically in tests with a short period.
func NewSoftwareWith(frequency, counterWidth uint32) *Software {
	invariant.Always(frequency > 0, "NewSoftwareWith: frequency must be positive")
	invariant.Always(counterWidth > 0 && counterWidth <= 32, "NewSoftwareWith: counterWidth out of range")
	return &Software{
		frequency:   frequency,
		counterMask: uint32(1<<counterWidth) - 1,
		periodTicks: uint64(1) << counterWidth,
	}
}

func (s *Software) Init() error {
	s.register.Store(0)
	s.overflow.Store(0)
	return nil
}

func (s *Software) Frequency() uint32 { return s.frequency }

// wideTicks reads the overflow counter and the hardware register using the
// overflow-register-overflow retry pattern: if the overflow counter changed
// between the two register-adjacent reads, a wrap happened mid-read and the
// whole triple is retried.
func (s *Software) wideTicks() uint64 {
	for {
		before := s.overflow.Load()
		reg := s.register.Load()
		after := s.overflow.Load()
		if before == after {
			return uint64(before)<<bitsFor(s.counterMask) | uint64(reg)
		}
	}
}

func bitsFor(mask uint32) uint32 {
	n := uint32(0)
	for mask != 0 {
		mask >>= 1
		n++
	}
	return n
}

func (s *Software) MonotonicSeconds() uint32 {
	return uint32(s.wideTicks() / uint64(s.frequency))
}

func (s *Software) MonotonicNanos() Timestamp {
	ticks := s.wideTicks()
	sec := uint32(ticks / uint64(s.frequency))
	sub := ticks % uint64(s.frequency)
	return Timestamp{Sec: sec, Nanos: subTickNanos(sub, s.frequency)}
}

// subTickNanos computes nanos = (sub * 1e9) / frequency without a 64-bit
// intermediate overflowing on a 32-bit platform. For the common
// F = 32768 this is the exact decomposition
// ((sub mod F) * 125000 / F) * 8000. Any other frequency falls back to the
// direct (but still overflow-safe on a 64-bit host) computation.
func subTickNanos(sub uint64, frequency uint32) uint32 {
	if frequency == 32768 {
		return uint32((sub*125000/uint64(frequency))*8000) % nanosPerSecond
	}
	return uint32((sub * nanosPerSecond) / uint64(frequency))
}

// Arm schedules cb to fire once delta in the future. A delta spanning at
// least one full overflow period is clamped to an immediate (minimum
// one-tick) fire; the caller (systime/timer) is expected to re-arm on the
// next wake once it observes the true target is still in the future.
func (s *Software) Arm(delta Timestamp, cb func()) {
	deltaTicks := uint64(delta.Sec)*uint64(s.frequency) + tickFraction(delta.Nanos, s.frequency)
	if deltaTicks >= s.periodTicks {
		deltaTicks = 0
	}
	if deltaTicks == 0 {
		deltaTicks = 1
	}

	s.armMu.Lock()
	s.armDeadline = s.wideTicks() + deltaTicks
	s.armCallback = cb
	s.armed = true
	s.armMu.Unlock()
}

func tickFraction(nanos uint32, frequency uint32) uint64 {
	return (uint64(nanos) * uint64(frequency)) / nanosPerSecond
}

// tick advances the counter by one and, on wrap, the overflow counter. It
// then plays the role of the compare-match ISR: if the arm deadline has
// passed, atomically read-and-clear the callback and invoke it. The
// callback must never touch the timer queue directly (see idle.Flag).
func (s *Software) tick() {
	next := (s.register.Load() + 1) & s.counterMask
	s.register.Store(next)
	if next == 0 {
		s.overflow.Add(1)
	}

	s.armMu.Lock()
	var fire func()
	if s.armed && s.wideTicks() >= s.armDeadline {
		fire = s.armCallback
		s.armCallback = nil
		s.armed = false
	}
	s.armMu.Unlock()

	if fire != nil {
		fire()
	}
}

// Advance drives the counter forward by d of simulated time, one tick at a
// time, firing any arm whose deadline is reached along the way. Used by
// tests and by cmd/timersim's run and arm subcommands; meaningless once
// RunRealtime is also driving the same backend.
func (s *Software) Advance(d time.Duration) {
	invariant.Always(d >= 0, "Software.Advance: duration must be non-negative")
	ticks := uint64(d) * uint64(s.frequency) / uint64(time.Second)
	for range ticks {
		s.tick()
	}
}

// RunRealtime starts a goroutine that advances the counter in step with
// wall-clock time, standing in for a free-running crystal. It ticks in
// coarse (1ms) batches rather than at the true tick rate to avoid a
// multi-kHz busy goroutine. Call Stop to halt it.
func (s *Software) RunRealtime() {
	s.driveMu.Lock()
	defer s.driveMu.Unlock()
	if s.driving {
		return
	}
	s.driving = true
	s.stopDrive = make(chan struct{})
	s.doneDrive = make(chan struct{})

	go func() {
		defer close(s.doneDrive)
		const batch = time.Millisecond
		ticker := time.NewTicker(batch)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopDrive:
				return
			case <-ticker.C:
				s.Advance(batch)
			}
		}
	}()
}

// Stop halts a RunRealtime goroutine previously started on this backend.
// No-op if none is running.
func (s *Software) Stop() {
	s.driveMu.Lock()
	if !s.driving {
		s.driveMu.Unlock()
		return
	}
	s.driving = false
	stop, done := s.stopDrive, s.doneDrive
	s.driveMu.Unlock()

	close(stop)
	<-done
}

var _ Descriptor = (*Software)(nil)
