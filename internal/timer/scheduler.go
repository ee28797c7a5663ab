package timer

import (
	"container/heap"
	"sync"
	"time"
)

// Task is a callback scheduled for future execution. A task with a
// positive Interval is re-armed after each run.
type Task struct {
	ID       string
	ExpiryAt time.Time
	Interval time.Duration
	Callback func()
	index    int // index in the heap (for heap.Interface)
}

// taskHeap is a min-heap of Tasks ordered by ExpiryAt
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	return h[i].ExpiryAt.Before(h[j].ExpiryAt)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x interface{}) {
	n := len(*h)
	task := x.(*Task)
	task.index = n
	*h = append(*h, task)
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	task := old[n-1]
	old[n-1] = nil  // avoid memory leak
	task.index = -1 // for safety
	*h = old[0 : n-1]
	return task
}

// Scheduler runs one-shot and fixed-cadence tasks off a single min-heap.
// Callbacks run on their own goroutine, so a slow callback can overlap its
// next run; callers that must not overlap guard themselves.
type Scheduler struct {
	heap    taskHeap
	mu      sync.Mutex
	wakeup  chan struct{}
	tasks   map[string]*Task // for O(1) lookup by ID
	fired   uint64
	started bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	onPanic func(id string, recovered any)
}

// NewScheduler creates a scheduler. onPanic, if set, receives panics raised
// by callbacks; otherwise they are swallowed.
func NewScheduler(onPanic func(id string, recovered any)) *Scheduler {
	s := &Scheduler{
		heap:    make(taskHeap, 0),
		wakeup:  make(chan struct{}, 1),
		tasks:   make(map[string]*Task),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		onPanic: onPanic,
	}
	heap.Init(&s.heap)
	return s
}

// Start starts the scheduler loop
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	go s.run()
}

// Stop stops the scheduler. Pending tasks never run. Callbacks already
// running are not waited for.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	close(s.stopCh)
	s.mu.Unlock()

	if started {
		<-s.doneCh
	}
}

// Schedule runs callback once at expiryAt. An existing task with the same
// id is replaced.
func (s *Scheduler) Schedule(id string, expiryAt time.Time, callback func()) error {
	return s.add(&Task{ID: id, ExpiryAt: expiryAt, Callback: callback})
}

// Every runs callback now and then every interval, on a fixed cadence
// measured from the first run. Runs missed while the process was stalled
// are skipped rather than replayed.
func (s *Scheduler) Every(id string, interval time.Duration, callback func()) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}
	return s.add(&Task{ID: id, ExpiryAt: time.Now(), Interval: interval, Callback: callback})
}

func (s *Scheduler) add(task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}

	if existing, ok := s.tasks[task.ID]; ok {
		heap.Remove(&s.heap, existing.index)
		delete(s.tasks, task.ID)
	}

	heap.Push(&s.heap, task)
	s.tasks[task.ID] = task

	// Wake up the loop if this is the earliest task
	if s.heap[0] == task {
		select {
		case s.wakeup <- struct{}{}:
		default:
		}
	}

	return nil
}

// Cancel removes a scheduled task
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return false
	}

	heap.Remove(&s.heap, task.index)
	delete(s.tasks, id)
	return true
}

func (s *Scheduler) run() {
	defer close(s.doneCh)

	for {
		s.mu.Lock()

		var waitDuration time.Duration
		if s.heap.Len() == 0 {
			waitDuration = 24 * time.Hour
		} else {
			next := s.heap[0]
			waitDuration = time.Until(next.ExpiryAt)

			if waitDuration <= 0 {
				task := heap.Pop(&s.heap).(*Task)
				delete(s.tasks, task.ID)
				s.fired++

				if task.Interval > 0 {
					s.rearm(task)
				}

				go s.invoke(task.ID, task.Callback)

				s.mu.Unlock()
				continue
			}
		}

		s.mu.Unlock()

		timer := time.NewTimer(waitDuration)
		select {
		case <-timer.C:
		case <-s.wakeup:
			timer.Stop()
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

// rearm pushes the next occurrence of a recurring task. Caller holds mu.
func (s *Scheduler) rearm(task *Task) {
	next := task.ExpiryAt.Add(task.Interval)
	if now := time.Now(); !next.After(now) {
		missed := now.Sub(next)/task.Interval + 1
		next = next.Add(missed * task.Interval)
	}

	again := &Task{ID: task.ID, ExpiryAt: next, Interval: task.Interval, Callback: task.Callback}
	heap.Push(&s.heap, again)
	s.tasks[again.ID] = again
}

func (s *Scheduler) invoke(id string, callback func()) {
	defer func() {
		if r := recover(); r != nil && s.onPanic != nil {
			s.onPanic(id, r)
		}
	}()
	callback()
}

// Stats returns statistics about the scheduler
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		ScheduledTasks: len(s.tasks),
		Fired:          s.fired,
	}
}

// Stats contains statistics about the scheduler
type Stats struct {
	ScheduledTasks int
	Fired          uint64
}

var (
	ErrSchedulerStopped = &TimerError{"scheduler is stopped"}
	ErrInvalidInterval  = &TimerError{"interval must be positive"}
)

// TimerError represents a timer error
type TimerError struct {
	msg string
}

func (e *TimerError) Error() string {
	return e.msg
}
