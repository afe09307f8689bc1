// Package scheduler drives the periodic tasks of the BMS main loop: wire
// acquisition, balancing, alert evaluation, charger control, SoC/SoE
// estimation, and the display feed. The heap-based periodic-task queue is
// adapted from services/hal/internal/core's Poller, generalized from its
// domain/kind/name polling keys to plain named tasks fired on their own
// period against a caller-supplied clock tick rather than wall time, since
// the main loop here is driven by a single fixed-period tick rather than
// many independently-scheduled HAL polls.
package scheduler

import (
	"container/heap"
	"time"
)

type taskItem struct {
	name  string
	due   time.Duration
	every time.Duration
	fn    func()
	index int
}

type taskHeap []*taskItem

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return h[i].due < h[j].due }
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *taskHeap) Push(x any)        { it := x.(*taskItem); it.index = len(*h); *h = append(*h, it) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	it.index = -1
	*h = old[:n-1]
	return it
}

// Ticker fires a set of named periodic tasks against a monotonic clock the
// caller advances one tick at a time, rather than against wall time: the
// main loop has no wall clock to suspend on, only a fixed tick period.
type Ticker struct {
	now  time.Duration
	h    taskHeap
	byID map[string]*taskItem
}

// NewTicker constructs an empty Ticker at clock 0.
func NewTicker() *Ticker {
	return &Ticker{byID: make(map[string]*taskItem)}
}

// Every registers fn to run every period, first firing after one period
// has elapsed from the call site's current clock.
func (s *Ticker) Every(name string, period time.Duration, fn func()) {
	it := &taskItem{name: name, due: s.now + period, every: period, fn: fn}
	s.byID[name] = it
	heap.Push(&s.h, it)
}

// Advance moves the clock forward by dt and runs every task whose period
// has elapsed, once each: a task re-arms one period after the new clock,
// so extra periods spanned by a large dt are not replayed.
func (s *Ticker) Advance(dt time.Duration) {
	s.now += dt
	for s.h.Len() > 0 && s.h[0].due <= s.now {
		it := heap.Pop(&s.h).(*taskItem)
		it.fn()
		it.due = s.now + it.every
		heap.Push(&s.h, it)
	}
}

// Now returns the Ticker's internal clock.
func (s *Ticker) Now() time.Duration { return s.now }
