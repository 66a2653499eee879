// Command timersim is a runnable demo that wires hwcounter, systime, timer,
// idle, and proc together as a single process. It has two subcommands:
// run, which drives the canonical end-to-end scenario worked through by
// hand, and arm, which arms one timer and fast-forwards the simulated
// clock around it. Both use the software backend, since there is no
// hardware to run against.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/james-orcales/softtimer/cli"
	"github.com/james-orcales/softtimer/hwcounter"
	"github.com/james-orcales/softtimer/idle"
	"github.com/james-orcales/softtimer/itlog"
	"github.com/james-orcales/softtimer/proc"
	"github.com/james-orcales/softtimer/systime"
	"github.com/james-orcales/softtimer/timer"
	"github.com/james-orcales/softtimer/xdebug"
)

var logger = itlog.New(itlog.LevelInfo)

var program = cli.New(
	"timersim",
	"drives the soft-timer core end to end against a simulated backend",
	cli.Command{
		Label:       "run",
		Description: "boots the stack and plays the worked end-to-end scenario",
	},
	cli.Command{
		Label:       "arm",
		Description: "arms one timer and fast-forwards the simulated clock around it",
		Arguments: []cli.Option{
			{Label: "label", Value: "", Description: "name printed alongside each fire"},
			{Label: "timeout_ms", Value: 0, Description: "initial delay, in milliseconds"},
			{Label: "interval_ms", Value: 0, Description: "repeat interval; 0 arms a one-shot"},
			{Label: "advance_ms", Value: 0, Description: "how far to fast-forward the simulated clock"},
		},
	},
)

func main() {
	command, err := program.Parse(os.Args)
	if err != nil {
		fmt.Fprintln(cli.Stderr, err)
		os.Exit(1)
	}

	switch command.Label {
	case "arm":
		runArm(
			cli.GetOption(command.Arguments, "label").Value.(string),
			int64(cli.GetOption(command.Arguments, "timeout_ms").Value.(int)),
			int64(cli.GetOption(command.Arguments, "interval_ms").Value.(int)),
			int64(cli.GetOption(command.Arguments, "advance_ms").Value.(int)),
		)
	case "run":
		runScenario()
	default:
		program.PrintHelp()
	}
}

// bootSoftwareStack installs a fresh software backend behind systime,
// halting the process on init failure. A failed backend means the clock
// and timer queue have no counter to read from, so there is nothing
// useful left for the demo to do.
func bootSoftwareStack() *hwcounter.Software {
	backend := hwcounter.NewSoftware()
	if err := systime.Init(backend); err != nil {
		logger.Error(err).Msg("timersim: backend init failed, halting")
		xdebug.FprintStackTrace(cli.Stderr, 0)
		os.Exit(1)
	}
	return backend
}

// runArm boots the stack, arms a single named timer, and advances the
// simulated clock in 1ms steps, sweeping after every step so simultaneous
// and near-simultaneous fires are observed the way the mainloop would see
// them.
func runArm(label string, timeoutMs, intervalMs, advanceMs int64) {
	backend := bootSoftwareStack()

	t := &timer.Timer{}
	timer.Init(t, timeoutMs, intervalMs, func(any) {
		fmt.Fprintf(cli.Stdout, "%s fired at %s\n", label, systime.RealtimeNow())
	}, nil)

	for range advanceMs {
		backend.Advance(time.Millisecond)
		timer.Sweep()
	}
}

// runScenario boots the stack, a mainloop goroutine parked on
// proc.Process.Wait and woken through proc.Cooperative.MarkRunnable, and
// arms the timers from the worked scenario: three timers sharing a target
// (to show the FIFO tie-break) and one periodic timer. It then drives the
// simulated clock through the whole timeline and waits for the mainloop to
// drain it.
func runScenario() {
	backend := bootSoftwareStack()

	sched := proc.NewCooperative()
	mainloop := sched.Register("timer-manager")
	// Wake is called from the backend's fire callback, standing in for ISR
	// context: it must do no more than latch the idle flag and mark the
	// mainloop process runnable.
	timer.Wake = func() {
		idle.RegisterEvent()
		sched.MarkRunnable("timer-manager")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if err := mainloop.Wait(ctx); err != nil {
				return
			}
			timer.Sweep()
		}
	}()

	var a, b, c, periodic timer.Timer
	timer.Init(&a, 100, 0, fireLogger("a"), nil)
	timer.Init(&b, 100, 0, fireLogger("b"), nil)
	timer.Init(&c, 100, 0, fireLogger("c"), nil) // shares a's and b's target
	timer.Init(&periodic, 30, 30, fireLogger("periodic"), nil)

	for range 200 {
		backend.Advance(time.Millisecond)
	}

	// Give the mainloop goroutine a chance to drain the final sweep before
	// the process exits; this is a demo convenience, not a synchronization
	// primitive the rest of the package relies on.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done
}

func fireLogger(label string) timer.Callback {
	return func(any) {
		fmt.Fprintf(cli.Stdout, "%s fired at %s\n", label, systime.RealtimeNow())
	}
}
