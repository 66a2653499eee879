//go:build linux

package hwcounter

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/james-orcales/softtimer/invariant"
	"github.com/james-orcales/softtimer/itlog"
)

// Linux is a "real" counter backend built on a Linux timerfd, standing in
// for an actual hardware compare-match peripheral. The kernel is the
// overflow-safe wide register here, so no separate overflow counter is
// needed; MonotonicNanos reads CLOCK_MONOTONIC_RAW directly, which does not
// step on NTP/set_realtime adjustments the way CLOCK_MONOTONIC can.
//
// Arming uses TFD_TIMER_ABSTIME-free relative arms; a dedicated goroutine
// epoll-waits on the timerfd and plays the role of the compare-match ISR:
// it reads the expiration count, atomically swaps out the registered
// callback, and invokes it. It must never touch the timer queue directly
// (the fire callback the timer package arms, timer.Wake, only sets flags).
type Linux struct {
	tfd  int
	epfd int

	mu       sync.Mutex
	callback func()

	stopCh chan struct{}
	doneCh chan struct{}

	log *itlog.Logger
}

// NewLinux constructs a Linux backend. Init must be called before use.
func NewLinux() *Linux {
	return &Linux{log: itlog.New(itlog.LevelInfo)}
}

func (l *Linux) Init() error {
	tfd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		return err
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		unix.Close(tfd)
		return err
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(tfd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, tfd, &ev); err != nil {
		unix.Close(tfd)
		unix.Close(epfd)
		return err
	}

	l.tfd = tfd
	l.epfd = epfd
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	go l.watch()
	return nil
}

// Frequency reports the effective resolution of CLOCK_MONOTONIC_RAW: one
// tick per nanosecond. There is no hardware overflow to model; the kernel's
// own wide counter never wraps on any timescale this repository cares
// about.
func (l *Linux) Frequency() uint32 { return 1_000_000_000 }

func (l *Linux) MonotonicSeconds() uint32 {
	var ts unix.Timespec
	invariant.AlwaysNil(unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts), "Linux.MonotonicSeconds: clock_gettime failed")
	return uint32(ts.Sec)
}

func (l *Linux) MonotonicNanos() Timestamp {
	var ts unix.Timespec
	invariant.AlwaysNil(unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts), "Linux.MonotonicNanos: clock_gettime failed")
	return Timestamp{Sec: uint32(ts.Sec), Nanos: uint32(ts.Nsec)}
}

func (l *Linux) Arm(delta Timestamp, cb func()) {
	nanos := int64(delta.Sec)*nanosPerSecond + int64(delta.Nanos)
	if nanos <= 0 {
		nanos = 1
	}
	spec := unix.ItimerSpec{
		Interval: unix.Timespec{Sec: 0, Nsec: 0},
		Value: unix.Timespec{
			Sec:  nanos / nanosPerSecond,
			Nsec: nanos % nanosPerSecond,
		},
	}

	l.mu.Lock()
	l.callback = cb
	l.mu.Unlock()

	if err := unix.TimerfdSettime(l.tfd, 0, &spec, nil); err != nil {
		l.log.Error(err).Msg("timerfd_settime failed")
	}
}

func (l *Linux) watch() {
	events := make([]unix.EpollEvent, 1)
	buf := make([]byte, 8)
	for {
		n, err := unix.EpollWait(l.epfd, events, 100)
		select {
		case <-l.stopCh:
			close(l.doneCh)
			return
		default:
		}
		if err != nil || n == 0 {
			continue
		}
		if _, err := unix.Read(l.tfd, buf); err != nil {
			continue
		}

		l.mu.Lock()
		fire := l.callback
		l.callback = nil
		l.mu.Unlock()

		if fire != nil {
			fire()
		}
	}
}

// Close stops the watcher goroutine and releases the timerfd and epoll
// file descriptors.
func (l *Linux) Close() error {
	close(l.stopCh)
	<-l.doneCh
	unix.Close(l.tfd)
	return unix.Close(l.epfd)
}

var _ Descriptor = (*Linux)(nil)
