package hwcounter_test

import (
	"sync"
	"testing"
	"time"

	"github.com/james-orcales/softtimer/hwcounter"
)

func TestTimestampNormalize(t *testing.T) {
	ts := hwcounter.Normalize(5, 2_500_000_000)
	if ts.Sec != 7 || ts.Nanos != 500_000_000 {
		t.Fatalf("got (%d, %d), want (7, 500000000)", ts.Sec, ts.Nanos)
	}
}

func TestTimestampAddSub(t *testing.T) {
	a := hwcounter.Timestamp{Sec: 1, Nanos: 800_000_000}
	b := hwcounter.Timestamp{Sec: 0, Nanos: 500_000_000}
	sum := a.Add(b)
	if sum.Sec != 2 || sum.Nanos != 300_000_000 {
		t.Fatalf("Add: got (%d, %d)", sum.Sec, sum.Nanos)
	}
	diff := sum.Sub(a)
	if diff != b {
		t.Fatalf("Sub: got %+v, want %+v", diff, b)
	}
}

func TestSoftwareMonotonicAdvances(t *testing.T) {
	sw := hwcounter.NewSoftware()
	if err := sw.Init(); err != nil {
		t.Fatal(err)
	}
	first := sw.MonotonicNanos()
	sw.Advance(10 * time.Millisecond)
	second := sw.MonotonicNanos()
	if second.Compare(first) <= 0 {
		t.Fatalf("expected monotonic advance, got %+v then %+v", first, second)
	}
}

func TestSoftwareNanosAlwaysNormalized(t *testing.T) {
	sw := hwcounter.NewSoftware()
	if err := sw.Init(); err != nil {
		t.Fatal(err)
	}
	for range 200 {
		sw.Advance(3 * time.Millisecond)
		ts := sw.MonotonicNanos()
		if ts.Nanos >= 1_000_000_000 {
			t.Fatalf("nanos out of range: %+v", ts)
		}
	}
}

func TestSoftwareOverflowWraps(t *testing.T) {
	// Tiny counter width so the overflow path is exercised quickly.
	sw := hwcounter.NewSoftwareWith(1000, 8) // period = 256 ticks @ 1kHz
	if err := sw.Init(); err != nil {
		t.Fatal(err)
	}
	before := sw.MonotonicNanos()
	sw.Advance(500 * time.Millisecond) // 500 ticks, more than one period
	after := sw.MonotonicNanos()
	if after.Compare(before) <= 0 {
		t.Fatalf("expected monotonic count to keep increasing across overflow, got %+v then %+v", before, after)
	}
}

func TestSoftwareArmFires(t *testing.T) {
	sw := hwcounter.NewSoftware()
	if err := sw.Init(); err != nil {
		t.Fatal(err)
	}

	fired := make(chan struct{}, 1)
	sw.Arm(hwcounter.Timestamp{Sec: 0, Nanos: 5_000_000}, func() {
		fired <- struct{}{}
	})

	sw.Advance(10 * time.Millisecond)

	select {
	case <-fired:
	default:
		t.Fatal("expected Arm callback to have fired by now")
	}
}

func TestSoftwareArmClampsBeyondOverflowPeriod(t *testing.T) {
	sw := hwcounter.NewSoftwareWith(1000, 8) // period = 256ms @ 1kHz
	if err := sw.Init(); err != nil {
		t.Fatal(err)
	}

	fired := make(chan struct{}, 1)
	// A delta of a full second is more than one overflow period (256ms);
	// Arm must clamp this to an immediate fire.
	sw.Arm(hwcounter.Timestamp{Sec: 1, Nanos: 0}, func() {
		fired <- struct{}{}
	})
	sw.Advance(time.Millisecond)

	select {
	case <-fired:
	default:
		t.Fatal("expected clamped Arm to fire within one tick")
	}
}

func TestSoftwareRaceFreeReadUnderConcurrentDrive(t *testing.T) {
	sw := hwcounter.NewSoftwareWith(100_000, 8) // fast wrap, stresses the retry loop
	if err := sw.Init(); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sw.Advance(50 * time.Millisecond)
	}()
	go func() {
		defer wg.Done()
		for range 1000 {
			_ = sw.MonotonicNanos()
		}
	}()
	wg.Wait()
}

var _ hwcounter.Descriptor = (*hwcounter.Software)(nil)
