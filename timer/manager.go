package timer

import (
	"time"

	"github.com/james-orcales/softtimer/idle"
	"github.com/james-orcales/softtimer/invariant"
	"github.com/james-orcales/softtimer/itlog"
	"github.com/james-orcales/softtimer/systime"
)

var logger = itlog.New(itlog.LevelInfo)

// head is the package-global queue. It is mutated only from the
// mainloop; the backend's fire callback (Wake) never touches it.
var head *Timer

// Wake is installed as the callback systime.TriggerAt arms against the
// queue head's target. It must do no more than latch the wake flag and
// mark the timer-manager process runnable, then return; no user callbacks
// run here. The default only does the former. cmd/timersim replaces it
// with a closure that also marks the timer-manager's proc.Process
// runnable.
var Wake = func() {
	idle.RegisterEvent()
}

func durationToTimestamp(d time.Duration) Timestamp {
	ns := uint64(d)
	return Timestamp{Sec: uint32(ns / 1_000_000_000), Nanos: uint32(ns % 1_000_000_000)}
}

func floorToMillis(ts Timestamp) Timestamp {
	millis := ts.Nanos / 1_000_000
	return Timestamp{Sec: ts.Sec, Nanos: millis * 1_000_000}
}

// queueOrdered reports whether the queue is sorted non-decreasing by
// target, the invariant insert must preserve.
func queueOrdered() bool {
	for node := head; node != nil && node.next != nil; node = node.next {
		if node.target.Compare(node.next.target) > 0 {
			return false
		}
	}
	return true
}

// insert performs a linear scan from head, inserting t immediately before
// the first node whose target is strictly greater than t.target, i.e.
// after any existing equal-keyed entries. Timers sharing a target fire in
// the order they were started (FIFO), matching the worked three-timers-
// same-target example this design was checked against.
func insert(t *Timer) {
	var prev *Timer
	node := head
	for node != nil && node.target.Compare(t.target) <= 0 {
		prev = node
		node = node.next
	}

	t.prev = prev
	t.next = node
	if prev != nil {
		prev.next = t
	} else {
		head = t
	}
	if node != nil {
		node.prev = t
	}
	t.inQueue = true

	invariant.Always(queueOrdered(), "timer.insert: queue ordering invariant violated")
}

// remove unlinks t from the queue. A no-op if t is not currently linked,
// which matters when a callback calls Stop/Pause on the very Timer the
// sweep already detached ahead of invoking its callback.
func remove(t *Timer) {
	if !t.inQueue {
		return
	}
	if t.prev != nil {
		t.prev.next = t.next
	} else {
		head = t.next
	}
	if t.next != nil {
		t.next.prev = t.prev
	}
	t.next = nil
	t.prev = nil
	t.inQueue = false
}

// rearm arms the backend for the current queue head, if any. Always safe
// to call after any mutation: a later arm simply overwrites a prior one.
func rearm() {
	if head == nil {
		return
	}
	systime.TriggerAt(head.target, Wake)
}

// InitNoStart zeroes t and stores its timeout/interval/callback/arg
// without starting it.
func InitNoStart(t *Timer, timeoutMs, intervalMs int64, cb Callback, arg any) {
	*t = Timer{
		timeout:  time.Duration(timeoutMs) * time.Millisecond,
		interval: time.Duration(intervalMs) * time.Millisecond,
		callback: cb,
		arg:      arg,
	}
}

// Init is InitNoStart followed by Start.
func Init(t *Timer, timeoutMs, intervalMs int64, cb Callback, arg any) {
	InitNoStart(t, timeoutMs, intervalMs, cb, arg)
	Start(t)
}

// Reset recomputes started/target from the current clocks: started is the
// monotonic now floored to 1ms; target is the realtime now (floored the
// same way) plus timeout.
func Reset(t *Timer) {
	t.started = floorToMillis(systime.MonotonicNow())
	t.target = floorToMillis(systime.RealtimeNow()).Add(durationToTimestamp(t.timeout))
}

// Start is a no-op if t is already running. If t.target is unset, it
// Resets t; otherwise it resumes by shifting target forward by the time
// elapsed since started (which Pause stamps at suspension), preserving the
// remaining delay. Either way, t is inserted into the queue and the
// backend is re-armed for the new head.
func Start(t *Timer) {
	if t.running {
		return
	}
	if t.target.IsZero() {
		Reset(t)
	} else {
		now := floorToMillis(systime.MonotonicNow())
		elapsed := now.Sub(t.started)
		t.target = t.target.Add(elapsed)
		t.started = now
	}
	t.running = true
	insert(t)
	rearm()
}

// Pause is a no-op if t is not running. It removes t from the queue and
// retains target so a later Start can resume, stamping started with the
// pause instant so Start's resume arithmetic preserves the remaining
// delay.
func Pause(t *Timer) {
	if !t.running {
		return
	}
	remove(t)
	t.started = floorToMillis(systime.MonotonicNow())
	t.running = false
	rearm()
}

// Stop pauses t and clears its target, returning it to the IDLE state.
func Stop(t *Timer) {
	Pause(t)
	t.target = Timestamp{}
}

// SetTimeout updates t.timeout. This does not move the target of an
// already-running timer; it only takes effect on the next Reset (a fresh
// Start after Stop). Periodic re-arms advance target by interval and do
// not read timeout.
func SetTimeout(t *Timer, ms int64) {
	t.timeout = time.Duration(ms) * time.Millisecond
}

// IsReady reports whether t.target has already passed. Deviates from a
// literal "target <= now" check by also requiring a non-zero target, so a
// never-started timer reports not ready instead of ready.
func IsReady(t *Timer) bool {
	return !t.target.IsZero() && t.target.Compare(systime.RealtimeNow()) <= 0
}

// IsRunning reports t.running.
func IsRunning(t *Timer) bool {
	return t.running
}

// Sweep walks the due prefix of the queue, invoking each callback and
// deferring periodic re-insertion to a side list until the whole prefix
// has drained. This is what the timer-manager process calls each time it
// wakes (see proc.Cooperative and cmd/timersim).
func Sweep() {
	now := systime.RealtimeNow()
	var readd []*Timer
	fired := 0

	node := head
	for node != nil && node.target.Compare(now) <= 0 {
		next := node.next
		remove(node)

		cb, arg := node.callback, node.arg
		cb(arg)
		fired++

		if node.running {
			if node.interval != 0 {
				readd = append(readd, node)
			} else {
				Stop(node)
			}
		}
		node = next
	}

	for _, n := range readd {
		n.target = n.target.Add(durationToTimestamp(n.interval))
		insert(n)
	}

	rearm()
	if fired > 0 {
		logger.Info().Int("fired", fired).Msg("timer.Sweep: pass complete")
	}
}
