// Package sched runs control-rate tasks against the audio clock.
package sched

import (
	"container/heap"
	"sync"
)

// Func is the body of a scheduled task. now is the clock value passed to
// Advance when the task fired.
type Func func(now float64)

// Handle refers to a scheduled task.
type Handle struct {
	s     *Scheduler
	at    float64
	seq   uint64
	fn    Func
	index int

	cancelled bool
	fired     bool
}

// At returns the clock time the task is due.
func (h *Handle) At() float64 { return h.at }

// Cancel prevents the task from running. Cancelling a fired task is a no-op.
func (h *Handle) Cancel() {
	if h == nil || h.s == nil {
		return
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	h.cancelLocked()
}

func (h *Handle) cancelLocked() {
	if h.cancelled || h.fired {
		return
	}
	h.cancelled = true
	if h.index >= 0 {
		heap.Remove(&h.s.queue, h.index)
	}
}

// Done reports whether the task has run or been cancelled.
func (h *Handle) Done() bool {
	if h == nil || h.s == nil {
		return true
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.cancelled || h.fired
}

// Scheduler is a time-ordered task queue. Tasks only run inside Advance, on
// the goroutine that calls it.
type Scheduler struct {
	mu    sync.Mutex
	queue taskQueue
	seq   uint64
	now   float64
}

// New returns an empty scheduler at time zero.
func New() *Scheduler {
	return &Scheduler{}
}

// Now returns the clock value of the last Advance.
func (s *Scheduler) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// At schedules fn to run once the clock reaches t.
func (s *Scheduler) At(t float64, fn Func) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.atLocked(t, fn)
}

// After schedules fn to run delay seconds after the last Advance.
func (s *Scheduler) After(delay float64, fn Func) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.atLocked(s.now+delay, fn)
}

func (s *Scheduler) atLocked(t float64, fn Func) *Handle {
	s.seq++
	h := &Handle{s: s, at: t, seq: s.seq, fn: fn, index: -1}
	heap.Push(&s.queue, h)
	return h
}

// Len returns the number of pending tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Advance moves the clock to now and runs every due task in time order.
// Tasks scheduled by a running task for a time <= now run in the same call.
// It returns the number of tasks run.
func (s *Scheduler) Advance(now float64) int {
	ran := 0
	s.mu.Lock()
	if now > s.now {
		s.now = now
	}
	for len(s.queue) > 0 && s.queue[0].at <= now {
		h := heap.Pop(&s.queue).(*Handle)
		h.fired = true
		s.mu.Unlock()
		h.fn(now)
		ran++
		s.mu.Lock()
	}
	s.mu.Unlock()
	return ran
}

// Group tracks the handles of one play session so they can be cancelled
// together.
type Group struct {
	s         *Scheduler
	mu        sync.Mutex
	handles   map[*Handle]struct{}
	cancelled bool
}

// NewGroup returns an empty group bound to s.
func (s *Scheduler) NewGroup() *Group {
	return &Group{s: s, handles: make(map[*Handle]struct{})}
}

// After schedules fn through the group. Once the group is cancelled it
// returns a handle that is already done and never runs fn.
func (g *Group) After(delay float64, fn Func) *Handle {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancelled {
		return &Handle{cancelled: true, index: -1}
	}
	var h *Handle
	h = g.s.After(delay, func(now float64) {
		g.forget(h)
		fn(now)
	})
	g.handles[h] = struct{}{}
	return h
}

func (g *Group) forget(h *Handle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.handles, h)
}

// CancelAll cancels every outstanding task of the group and refuses new ones.
func (g *Group) CancelAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = true
	g.s.mu.Lock()
	for h := range g.handles {
		h.cancelLocked()
	}
	g.s.mu.Unlock()
	g.handles = make(map[*Handle]struct{})
}

// Cancelled reports whether CancelAll was called.
func (g *Group) Cancelled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancelled
}

// Outstanding returns the number of group tasks that have not run.
func (g *Group) Outstanding() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.handles)
}

type taskQueue []*Handle

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	h := x.(*Handle)
	h.index = len(*q)
	*q = append(*q, h)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	h := old[n-1]
	old[n-1] = nil
	h.index = -1
	*q = old[:n-1]
	return h
}
