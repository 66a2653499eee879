package timer

import (
	"testing"
	"time"

	"github.com/james-orcales/softtimer/hwcounter"
	"github.com/james-orcales/softtimer/systime"
)

// freshBackend installs a new software backend and clears the package-global
// queue, giving each test a clean slate despite timer's singleton design.
func freshBackend(t *testing.T) *hwcounter.Software {
	t.Helper()
	sw := hwcounter.NewSoftware()
	if err := systime.Init(sw); err != nil {
		t.Fatal(err)
	}
	head = nil
	return sw
}

func TestInsertionTieBreak(t *testing.T) {
	freshBackend(t)

	target := Timestamp{Sec: 1}
	a := &Timer{target: target}
	b := &Timer{target: target}

	insert(a)
	insert(b)

	if head != a || head.next != b {
		t.Fatal("expected new insertion (b) to land after the existing equal-keyed node (a), preserving FIFO order")
	}
}

func TestQueueStaysOrdered(t *testing.T) {
	freshBackend(t)

	var timers []*Timer
	targets := []uint32{5, 1, 3, 2, 4}
	for _, sec := range targets {
		tm := &Timer{target: Timestamp{Sec: sec}}
		insert(tm)
		timers = append(timers, tm)
	}

	if !queueOrdered() {
		t.Fatal("queue not ordered after inserts")
	}

	node := head
	var prev uint32
	for node != nil {
		if node.target.Sec < prev {
			t.Fatalf("out of order: %d before %d", prev, node.target.Sec)
		}
		prev = node.target.Sec
		node = node.next
	}
}

func TestMembershipMatchesRunning(t *testing.T) {
	freshBackend(t)

	var tm Timer
	InitNoStart(&tm, 50, 0, func(any) {}, nil)
	if tm.running {
		t.Fatal("freshly InitNoStart'd timer must not be running")
	}

	Start(&tm)
	if !tm.running || !tm.inQueue {
		t.Fatal("Start must mark running and link into queue")
	}

	Pause(&tm)
	if tm.running || tm.inQueue {
		t.Fatal("Pause must clear running and unlink from queue")
	}
}

func TestStartOnRunningTimerIsNoop(t *testing.T) {
	freshBackend(t)

	var tm Timer
	InitNoStart(&tm, 100, 0, func(any) {}, nil)
	Start(&tm)
	target := tm.target
	Start(&tm)
	if tm.target != target {
		t.Fatal("Start on an already-running timer must not move target")
	}
}

func TestOneShotFiresOnceAndGoesIdle(t *testing.T) {
	sw := freshBackend(t)

	fired := 0
	var tm Timer
	Init(&tm, 100, 0, func(any) { fired++ }, nil)

	sw.Advance(150 * time.Millisecond)
	Sweep()

	if fired != 1 {
		t.Fatalf("fired %d times, want 1", fired)
	}
	if IsRunning(&tm) {
		t.Fatal("one-shot timer must be IDLE after firing")
	}
}

func TestPeriodicFiresThreeTimesThenStops(t *testing.T) {
	sw := freshBackend(t)

	var tm Timer
	fireTimes := []hwcounter.Timestamp{}
	Init(&tm, 50, 50, func(any) {
		fireTimes = append(fireTimes, systime.RealtimeNow())
		if len(fireTimes) == 3 {
			Stop(&tm)
		}
	}, nil)

	for range 4 {
		sw.Advance(60 * time.Millisecond)
		Sweep()
	}

	if len(fireTimes) != 3 {
		t.Fatalf("fired %d times, want 3", len(fireTimes))
	}
	if IsRunning(&tm) {
		t.Fatal("expected timer to be stopped from its own callback")
	}
}

func TestSimultaneousExpiryFiresEachOnce(t *testing.T) {
	sw := freshBackend(t)

	var order []string
	var a, b, c Timer
	Init(&a, 20, 0, func(any) { order = append(order, "a") }, nil)
	Init(&b, 20, 0, func(any) { order = append(order, "b") }, nil)
	Init(&c, 20, 0, func(any) { order = append(order, "c") }, nil)

	sw.Advance(25 * time.Millisecond)
	Sweep()

	if len(order) != 3 {
		t.Fatalf("fired %d times total, want 3", len(order))
	}
	if order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("expected FIFO-of-insertion order, got %v", order)
	}
}

func TestPauseResumePreservesRemaining(t *testing.T) {
	sw := freshBackend(t)

	var fireTarget hwcounter.Timestamp
	var tm Timer
	Init(&tm, 100, 0, func(any) { fireTarget = systime.RealtimeNow() }, nil)

	sw.Advance(30 * time.Millisecond)
	Pause(&tm)

	sw.Advance(50 * time.Millisecond) // wall clock now at 80ms
	Start(&tm)

	sw.Advance(75 * time.Millisecond) // wall clock now at 155ms > 150ms expected fire
	Sweep()

	if fireTarget.IsZero() {
		t.Fatal("expected timer to have fired after resume")
	}
	if fireTarget.Sec != 0 || fireTarget.Nanos < 150_000_000 {
		t.Fatalf("expected fire no earlier than 150ms (remaining 70ms preserved across pause), got %+v", fireTarget)
	}
}

func TestStopInsideCallbackPreventsReinsertion(t *testing.T) {
	sw := freshBackend(t)

	var tm Timer
	calls := 0
	Init(&tm, 20, 20, func(any) {
		calls++
		Stop(&tm)
	}, nil)

	sw.Advance(25 * time.Millisecond)
	Sweep()
	sw.Advance(25 * time.Millisecond)
	Sweep()

	if calls != 1 {
		t.Fatalf("callback invoked %d times, want 1 (stopped from inside itself)", calls)
	}
}

func TestNestedCallbackSchedulesAnotherTimer(t *testing.T) {
	sw := freshBackend(t)

	var a, b Timer
	bFired := false
	InitNoStart(&b, 5, 0, func(any) { bFired = true }, nil)
	Init(&a, 10, 0, func(any) {
		Start(&b)
	}, nil)

	sw.Advance(12 * time.Millisecond)
	Sweep()
	if bFired {
		t.Fatal("b should not have fired yet (armed for +5ms from the moment a's callback ran)")
	}

	sw.Advance(10 * time.Millisecond)
	Sweep()
	if !bFired {
		t.Fatal("expected nested timer b to fire after its own delay elapsed")
	}
}

func TestSetRealtimeJumpAffectsPendingTimers(t *testing.T) {
	sw := freshBackend(t)

	fired := false
	var tm Timer
	Init(&tm, 100, 0, func(any) { fired = true }, nil)

	// A large forward realtime jump makes the (realtime-anchored) target
	// due immediately, by design: targets are never silently re-anchored
	// to monotonic time when the wall clock is stepped.
	systime.SetRealtime(hwcounter.Timestamp{Sec: 1000})
	sw.Advance(time.Millisecond)
	Sweep()

	if !fired {
		t.Fatal("expected forward SetRealtime jump to make the pending timer due")
	}
}

func TestNanosecondsAlwaysNormalized(t *testing.T) {
	freshBackend(t)
	var tm Timer
	InitNoStart(&tm, 1500, 0, func(any) {}, nil)
	Reset(&tm)
	if tm.target.Nanos >= 1_000_000_000 || tm.started.Nanos >= 1_000_000_000 {
		t.Fatalf("unnormalized timestamp: started=%+v target=%+v", tm.started, tm.target)
	}
}
