package idle_test

import (
	"testing"
	"time"

	"github.com/james-orcales/softtimer/idle"
)

func TestWaitForEventReturnsImmediatelyWhenAlreadyLatched(t *testing.T) {
	f := idle.NewFlag()
	f.RegisterEvent()

	done := make(chan struct{})
	go func() {
		f.WaitForEvent()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForEvent did not return for an already-latched flag")
	}
}

func TestWaitForEventBlocksUntilRegistered(t *testing.T) {
	f := idle.NewFlag()
	done := make(chan struct{})
	go func() {
		f.WaitForEvent()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitForEvent returned before any RegisterEvent")
	case <-time.After(20 * time.Millisecond):
	}

	f.RegisterEvent()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForEvent did not wake after RegisterEvent")
	}
}

func TestRegisterEventBeforeWaitIsNeverLost(t *testing.T) {
	f := idle.NewFlag()
	for range 100 {
		f.RegisterEvent()
		f.WaitForEvent() // must not block: the event always precedes the wait here
	}
}

// TestRegisterWaitPairUpUnderConcurrency pairs 20 rounds of RegisterEvent
// and WaitForEvent across two goroutines. Since Flag is a single latch,
// not a counting semaphore, registers are only guaranteed not to be lost
// individually when paired like this. Bursting many RegisterEvent calls
// ahead of any wait legitimately coalesces them into one pending wake,
// which is the documented latch semantics, not a bug.
func TestRegisterWaitPairUpUnderConcurrency(t *testing.T) {
	f := idle.NewFlag()
	proceed := make(chan struct{})
	done := make(chan struct{})

	go func() {
		for range 20 {
			<-proceed
			f.RegisterEvent()
		}
	}()

	go func() {
		for range 20 {
			proceed <- struct{}{}
			f.WaitForEvent()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("register/wait pairs never completed")
	}
}
