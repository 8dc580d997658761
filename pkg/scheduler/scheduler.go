// Package scheduler runs one-shot tasks at a future time. It exists so that
// records scheduled for deferred deletion (reactions) do not couple their
// expiry mechanism to the insert path, and the expiry can be tested alone.
package scheduler

import (
	"container/heap"
	"sync"
	"time"
)

type task struct {
	runAt    time.Time
	fn       func()
	index    int
	canceled bool
}

type taskHeap []*task

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].runAt.Before(h[j].runAt) }
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *taskHeap) Push(x interface{}) { t := x.(*task); t.index = len(*h); *h = append(*h, t) }
func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// Scheduler owns a min-heap of pending tasks and a single goroutine that
// sleeps until the earliest deadline. Tasks run on that goroutine, so they
// must be short; ours issue one delete each.
type Scheduler struct {
	mu      sync.Mutex
	tasks   taskHeap
	wake    chan struct{}
	done    chan struct{}
	stopped sync.Once
}

func New() *Scheduler {
	s := &Scheduler{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

// Schedule registers fn to run once delay from now. The returned function
// cancels the task if it has not started yet.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) (cancel func()) {
	t := &task{runAt: time.Now().Add(delay), fn: fn}

	s.mu.Lock()
	heap.Push(&s.tasks, t)
	s.mu.Unlock()
	s.kick()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		t.canceled = true
	}
}

// Pending returns the number of tasks not yet run or canceled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.canceled {
			n++
		}
	}
	return n
}

// Stop terminates the run loop. Pending tasks never fire.
func (s *Scheduler) Stop() {
	s.stopped.Do(func() { close(s.done) })
}

func (s *Scheduler) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		s.mu.Lock()
		var next *task
		now := time.Now()
		for s.tasks.Len() > 0 {
			t := s.tasks[0]
			if t.canceled {
				heap.Pop(&s.tasks)
				continue
			}
			if t.runAt.After(now) {
				next = t
				break
			}
			heap.Pop(&s.tasks)
			s.mu.Unlock()
			t.fn()
			s.mu.Lock()
			now = time.Now()
		}
		s.mu.Unlock()

		wait := time.Hour
		if next != nil {
			wait = time.Until(next.runAt)
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-s.done:
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}
