package proc_test

import (
	"context"
	"testing"
	"time"

	"github.com/james-orcales/softtimer/proc"
)

func TestMarkRunnableWakesWaiter(t *testing.T) {
	sched := proc.NewCooperative()
	p := sched.Register("timer-manager")

	done := make(chan error, 1)
	go func() {
		done <- p.Wait(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	sched.MarkRunnable("timer-manager")

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait never returned after MarkRunnable")
	}
}

func TestMarkRunnableBeforeWaitIsNotLost(t *testing.T) {
	sched := proc.NewCooperative()
	p := sched.Register("timer-manager")

	sched.MarkRunnable("timer-manager")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("Wait returned error for an already-marked process: %v", err)
	}
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	sched := proc.NewCooperative()
	p := sched.Register("idle")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Wait(ctx); err == nil {
		t.Fatal("expected Wait to return an error for a cancelled context")
	}
}

func TestRegisterIsIdempotentPerName(t *testing.T) {
	sched := proc.NewCooperative()
	a := sched.Register("timer-manager")
	b := sched.Register("timer-manager")
	if a != b {
		t.Fatal("expected Register to return the same *Process for the same name")
	}
}
