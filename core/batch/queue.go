package batch

import (
	"sort"
	"sync"
)

// Priority orders task classes in the queue. Lower sorts first.
type Priority int

const (
	// PriorityHigh is assigned to isolated (spread-splitting) tasks,
	// which cost roughly 2.5x per image.
	PriorityHigh Priority = iota
	PriorityNormal
)

// Per-image cost weights used for longest-task-first ordering.
const (
	costPerImageHigh   = 25
	costPerImageNormal = 10
)

type prioritizedTask struct {
	task          Task
	priority      Priority
	originalIndex int
	estimatedCost int
}

// Queue is the shared task source for all workers. There is no static
// task-to-worker assignment: any idle worker pops the head, so uneven
// batch durations self-balance. All methods are goroutine-safe.
type Queue struct {
	mu        sync.Mutex
	pending   []prioritizedTask
	completed int
	total     int
}

func NewQueue() *Queue {
	return &Queue{}
}

// Init replaces all queue state with the given tasks, ordered by
// (priority, estimated cost descending, original index). Expensive
// isolated work is dequeued first to minimize makespan, and ties keep
// insertion order for determinism.
func (q *Queue) Init(tasks []Task) {
	entries := make([]prioritizedTask, len(tasks))
	for i, t := range tasks {
		p := PriorityHigh
		weight := costPerImageHigh
		if t.Global {
			p = PriorityNormal
			weight = costPerImageNormal
		}
		entries[i] = prioritizedTask{
			task:          t,
			priority:      p,
			originalIndex: i,
			estimatedCost: len(t.Images) * weight,
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		if entries[i].estimatedCost != entries[j].estimatedCost {
			return entries[i].estimatedCost > entries[j].estimatedCost
		}
		return entries[i].originalIndex < entries[j].originalIndex
	})

	q.mu.Lock()
	q.pending = entries
	q.completed = 0
	q.total = len(entries)
	q.mu.Unlock()
}

// Next pops the head task, or returns ok=false when the queue is empty.
// Atomic with respect to all other callers; no two workers ever receive
// the same task.
func (q *Queue) Next(workerID int) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return Task{}, false
	}
	head := q.pending[0]
	q.pending = q.pending[1:]
	return head.task, true
}

// MarkCompleted records one finished task. It has no effect on dequeue
// order.
func (q *Queue) MarkCompleted() {
	q.mu.Lock()
	q.completed++
	q.mu.Unlock()
}

// Completed returns how many tasks have been marked completed.
func (q *Queue) Completed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}

// Remaining returns how many tasks are still queued.
func (q *Queue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Total returns the task count from the last Init.
func (q *Queue) Total() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.total
}
