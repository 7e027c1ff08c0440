package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock abstracts time so timer-driven state machines can run against an
// advanceable clock in tests instead of wall-clock delays.
type Clock interface {
	Now() time.Time
	// AfterFunc schedules fn to run once d has elapsed. The returned Timer
	// can be stopped before it fires; stopping an already-fired or
	// already-stopped timer is a no-op.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop cancels the timer. It reports whether the call prevented the
	// callback from running.
	Stop() bool
}

// System is the real clock backed by the time package.
type System struct{}

// Now returns the current wall-clock time.
func (System) Now() time.Time { return time.Now() }

// AfterFunc schedules fn on a real timer.
func (System) AfterFunc(d time.Duration, fn func()) Timer {
	return systemTimer{t: time.AfterFunc(d, fn)}
}

type systemTimer struct {
	t *time.Timer
}

func (s systemTimer) Stop() bool { return s.t.Stop() }

// Fake is a manually advanced clock for tests. Callbacks scheduled via
// AfterFunc run synchronously inside Advance, in deadline order.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

// NewFake returns a fake clock pinned at the provided instant.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake clock's current instant.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AfterFunc registers fn to run when the clock is advanced past d.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTimer{
		clock:    f,
		deadline: f.now.Add(d),
		seq:      f.seq,
		fn:       fn,
	}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves the clock forward and fires every timer whose deadline falls
// inside the window. Timers scheduled by a firing callback run in the same
// advance when their deadline also falls inside the window.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		t := f.nextDue(target)
		if t == nil {
			break
		}
		f.mu.Lock()
		if t.deadline.After(f.now) {
			f.now = t.deadline
		}
		f.mu.Unlock()
		t.fire()
	}

	f.mu.Lock()
	f.now = target
	f.mu.Unlock()
}

// Pending reports how many timers have not yet fired or been stopped.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.timers {
		if !t.done {
			n++
		}
	}
	return n
}

func (f *Fake) nextDue(target time.Time) *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	candidates := make([]*fakeTimer, 0, len(f.timers))
	for _, t := range f.timers {
		if !t.done && !t.deadline.After(target) {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].deadline.Equal(candidates[j].deadline) {
			return candidates[i].seq < candidates[j].seq
		}
		return candidates[i].deadline.Before(candidates[j].deadline)
	})
	return candidates[0]
}

type fakeTimer struct {
	clock    *Fake
	deadline time.Time
	seq      int
	fn       func()
	done     bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

func (t *fakeTimer) fire() {
	t.clock.mu.Lock()
	if t.done {
		t.clock.mu.Unlock()
		return
	}
	t.done = true
	fn := t.fn
	t.clock.mu.Unlock()
	fn()
}
