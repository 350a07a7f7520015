package fakebackend

import (
	"sync"
	"time"

	"github.com/echosmith/echosmith/backend"
)

// store is an in-memory task registry with per-task progress broadcasting,
// mirroring the real backend's task store semantics.
type store struct {
	mut   sync.Mutex
	tasks map[string]*taskState
}

type taskState struct {
	task      backend.Task
	paused    bool
	cancelled bool
	subs      []chan backend.Task
}

// broadcast fans the current snapshot out to subscribers. Sends are
// non-blocking: a slow subscriber drops events rather than stalling the task
// simulation. Callers must hold the store lock.
func (ts *taskState) broadcast() {
	for _, sub := range ts.subs {
		select {
		case sub <- ts.task:
		default:
		}
	}
}

func newStore() *store {
	return &store{tasks: map[string]*taskState{}}
}

func (s *store) create(task backend.Task) {
	s.mut.Lock()
	defer s.mut.Unlock()
	ts := &taskState{task: task}
	s.tasks[task.ID] = ts
	ts.broadcast()
}

func (s *store) get(id string) (backend.Task, bool) {
	s.mut.Lock()
	defer s.mut.Unlock()
	ts, ok := s.tasks[id]
	if !ok {
		return backend.Task{}, false
	}
	return ts.task, true
}

func (s *store) list() []backend.Task {
	s.mut.Lock()
	defer s.mut.Unlock()
	tasks := make([]backend.Task, 0, len(s.tasks))
	for _, ts := range s.tasks {
		tasks = append(tasks, ts.task)
	}
	return tasks
}

func (s *store) delete(id string) bool {
	s.mut.Lock()
	defer s.mut.Unlock()
	ts, ok := s.tasks[id]
	if !ok {
		return false
	}
	ts.cancelled = true
	for _, sub := range ts.subs {
		close(sub)
	}
	ts.subs = nil
	delete(s.tasks, id)
	return true
}

// update mutates a task under the lock and broadcasts the new snapshot to
// subscribers. Returns false if the task does not exist.
func (s *store) update(id string, mutate func(ts *taskState)) bool {
	s.mut.Lock()
	defer s.mut.Unlock()
	ts, ok := s.tasks[id]
	if !ok {
		return false
	}
	mutate(ts)
	ts.task.UpdatedAt = unixNow()
	ts.broadcast()
	return true
}

// subscribe registers a progress listener for a task. The channel is closed
// when the task is deleted or the returned cancel func runs; cancel is safe
// to call after deletion.
func (s *store) subscribe(id string) (<-chan backend.Task, func(), bool) {
	s.mut.Lock()
	defer s.mut.Unlock()
	ts, ok := s.tasks[id]
	if !ok {
		return nil, nil, false
	}
	ch := make(chan backend.Task, 64)
	// Seed with the current snapshot so late subscribers still observe the
	// task's state, including an already-terminal one.
	ch <- ts.task
	ts.subs = append(ts.subs, ch)
	cancel := func() {
		s.mut.Lock()
		defer s.mut.Unlock()
		cur, ok := s.tasks[id]
		if !ok {
			return
		}
		for i, sub := range cur.subs {
			if sub == ch {
				cur.subs = append(cur.subs[:i], cur.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel, true
}

func (s *store) flags(id string) (paused, cancelled, ok bool) {
	s.mut.Lock()
	defer s.mut.Unlock()
	ts, found := s.tasks[id]
	if !found {
		return false, true, false
	}
	return ts.paused, ts.cancelled, true
}

func unixNow() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
