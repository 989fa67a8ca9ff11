package fiber

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/DataExMachina-dev/fiberstack-go/internal/fifo"
)

// Instrumentation tells the scheduler which methods had their locals removed
// by the instrumenter. Such methods get no frame record.
type Instrumentation interface {
	IsLocalsEliminated(typeName, methodName string) (eliminated, ok bool)
}

var (
	// EntryLocation is the outermost frame of every task.
	EntryLocation = Location{TypeName: "fiber.Task", MethodName: "run", FileName: "task.go"}

	// traceLocation is the reporting frame at the top of every symbolic trace.
	traceLocation = Location{TypeName: "fiber.Scheduler", MethodName: "SymbolicTrace", FileName: "scheduler.go"}
)

// ErrAlreadyRunning is returned by Run when another Run call is active.
var ErrAlreadyRunning = errors.New("scheduler is already running")

// Scheduler runs tasks cooperatively: exactly one task executes at a time,
// and control returns to the scheduler only when the running task parks,
// yields or finishes. Park callbacks run on the goroutine that called Run.
type Scheduler struct {
	instr  Instrumentation
	nextID atomic.Uint64

	// yield carries control from the running task back to Run.
	yield chan yieldEvent
	// notify wakes Run when a task becomes runnable.
	notify chan struct{}

	mu struct {
		sync.Mutex
		ready   fifo.Queue[*Task]
		live    int
		running bool
	}
}

type yieldEvent struct {
	t    *Task
	park func(Handle)
	done bool
}

var _ Runtime = (*Scheduler)(nil)

// NewScheduler creates a scheduler. instr may be nil, in which case every
// method keeps its locals.
func NewScheduler(instr Instrumentation) *Scheduler {
	return &Scheduler{
		instr:  instr,
		yield:  make(chan yieldEvent),
		notify: make(chan struct{}, 1),
	}
}

// Spawn creates a task running fn and queues it. The context passed to fn
// carries the task, see CurrentTask.
func (s *Scheduler) Spawn(ctx context.Context, name string, fn func(ctx context.Context, t *Task)) *Task {
	t := &Task{
		id:      s.nextID.Add(1),
		name:    name,
		sched:   s,
		wake:    make(chan struct{}),
		done:    make(chan struct{}),
		prims:   []uint64{0},
		objects: []any{nil},
	}
	t.state.Store(int32(StateReady))
	taskCtx := WithTask(ctx, t)
	go t.run(taskCtx, fn)

	s.mu.Lock()
	s.mu.live++
	s.mu.ready.Push(t)
	s.mu.Unlock()
	s.signal()
	return t
}

// Run executes tasks until none is left alive or ctx is canceled. Tasks that
// stay parked forever keep Run waiting until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.mu.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.mu.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.mu.running = false
		s.mu.Unlock()
	}()

	for {
		t, err := s.next(ctx)
		if err != nil {
			return err
		}
		if t == nil {
			return nil
		}
		t.state.Store(int32(StateRunning))
		t.wake <- struct{}{}
		ev := <-s.yield
		switch {
		case ev.done:
			s.mu.Lock()
			s.mu.live--
			s.mu.Unlock()
		case ev.park != nil:
			ev.park(ev.t)
		}
	}
}

func (s *Scheduler) next(ctx context.Context) (*Task, error) {
	for {
		s.mu.Lock()
		t, ok := s.mu.ready.Pop()
		live := s.mu.live
		s.mu.Unlock()
		if ok {
			return t, nil
		}
		if live == 0 {
			return nil, nil
		}
		select {
		case <-s.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *Scheduler) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Scheduler) task(h Handle) *Task {
	t, ok := h.(*Task)
	if !ok || t.sched != s {
		panic(fmt.Sprintf("fiber: handle %v does not belong to this scheduler", h))
	}
	return t
}

// CurrentTask implements Runtime.
func (s *Scheduler) CurrentTask(ctx context.Context) (Handle, bool) {
	h, ok := TaskFromContext(ctx)
	if !ok {
		return nil, false
	}
	if t, ok := h.(*Task); !ok || t.sched != s {
		return nil, false
	}
	return h, true
}

// SymbolicTrace implements Runtime.
func (s *Scheduler) SymbolicTrace(h Handle) []Location {
	t := s.task(h)
	trace := make([]Location, 0, len(t.calls)+2)
	trace = append(trace, traceLocation)
	for i := len(t.calls) - 1; i >= 0; i-- {
		trace = append(trace, t.calls[i].loc)
	}
	return append(trace, EntryLocation)
}

// Park implements Runtime.
func (s *Scheduler) Park(h Handle, f func(Handle)) {
	t := s.task(h)
	if f == nil {
		f = func(Handle) {}
	}
	t.state.Store(int32(StateParked))
	s.yield <- yieldEvent{t: t, park: f}
	<-t.wake
}

// Resume implements Runtime.
func (s *Scheduler) Resume(h Handle) {
	t := s.task(h)
	if !t.state.CompareAndSwap(int32(StateParked), int32(StateReady)) {
		panic(fmt.Sprintf("fiber: resume of task %d in state %s", t.id, t.State()))
	}
	s.mu.Lock()
	s.mu.ready.Push(t)
	s.mu.Unlock()
	s.signal()
}

// Yield lets other runnable tasks execute before the calling task continues.
func (s *Scheduler) Yield(h Handle) {
	s.Park(h, s.Resume)
}

// RawObjectStack implements Runtime.
func (s *Scheduler) RawObjectStack(h Handle) []any {
	return s.task(h).objects
}

// RawPrimitiveStack implements Runtime.
func (s *Scheduler) RawPrimitiveStack(h Handle) []uint64 {
	return s.task(h).prims
}

func (s *Scheduler) localsEliminated(loc Location) bool {
	if s.instr == nil {
		return false
	}
	eliminated, ok := s.instr.IsLocalsEliminated(loc.TypeName, loc.MethodName)
	return ok && eliminated
}
