package fiber

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/DataExMachina-dev/fiberstack-go/internal/framing"
)

// State is the scheduling state of a task.
type State int32

const (
	StateReady State = iota
	StateRunning
	StateParked
	StateDone
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateParked:
		return "parked"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Task is a unit of work run by a Scheduler.
//
// A task keeps a copy of its stack in two parallel arrays. Every call that
// keeps its locals owns a frame: a header word in the primitive array holding
// the slot count, followed by one slot per local. The object array holds the
// locals at the same indexes. A zero word terminates the stack.
type Task struct {
	id    uint64
	name  string
	sched *Scheduler
	state atomic.Int32

	wake chan struct{}
	done chan struct{}
	err  error

	// Only touched by the task's own goroutine, or while it is parked.
	calls   []call
	prims   []uint64
	objects []any
}

type call struct {
	loc Location
	// record is the index of the frame header, or -1 if the call owns none.
	record int
}

var _ Handle = (*Task)(nil)

// Padding fills the only slot of a frame recorded for a call without locals.
// It is never a local value.
type Padding struct{}

// TaskID implements Handle.
func (t *Task) TaskID() uint64 { return t.id }

// Name returns the name the task was spawned with.
func (t *Task) Name() string { return t.name }

// State returns the task's current scheduling state.
func (t *Task) State() State { return State(t.state.Load()) }

// Done is closed once the task body has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes and returns the error produced by a
// panic in its body, if any.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Task) String() string {
	return fmt.Sprintf("task %d (%s)", t.id, t.name)
}

func (t *Task) run(ctx context.Context, fn func(ctx context.Context, t *Task)) {
	<-t.wake
	defer func() {
		if r := recover(); r != nil {
			t.err = fmt.Errorf("%v panicked: %v", t, r)
		}
		t.state.Store(int32(StateDone))
		close(t.done)
		t.sched.yield <- yieldEvent{t: t, done: true}
	}()
	fn(ctx, t)
}

// Enter records a call to loc with the given locals. Every Enter must be
// paired with an Exit, typically:
//
//	t.Enter(loc, a, b)
//	defer t.Exit()
//
// A call to the same method as the innermost call is treated as part of
// that call and gets no frame of its own. Calls to methods whose locals were
// eliminated are traced but get no frame either.
func (t *Task) Enter(loc Location, locals ...any) {
	c := call{loc: loc, record: -1}
	reentrant := len(t.calls) > 0 && t.calls[len(t.calls)-1].loc.SameMethod(loc)
	if !reentrant && !t.sched.localsEliminated(loc) {
		c.record = t.pushFrame(locals)
	}
	t.calls = append(t.calls, c)
}

// Exit pops the innermost call recorded by Enter.
func (t *Task) Exit() {
	if len(t.calls) == 0 {
		panic(fmt.Sprintf("fiber: Exit without Enter on %v", t))
	}
	c := t.calls[len(t.calls)-1]
	t.calls = t.calls[:len(t.calls)-1]
	if c.record < 0 {
		return
	}
	clear(t.objects[c.record:])
	t.objects = t.objects[:c.record+1]
	t.prims[c.record] = 0
	t.prims = t.prims[:c.record+1]
}

// SetLocal updates local i of the innermost call that owns a frame.
func (t *Task) SetLocal(i int, v any) {
	for j := len(t.calls) - 1; j >= 0; j-- {
		rec := t.calls[j].record
		if rec < 0 {
			continue
		}
		n := framing.Record(t.prims[rec]).SlotCount()
		if i < 0 || i >= n {
			panic(fmt.Sprintf("fiber: local %d out of range [0, %d) in %v", i, n, t.calls[j].loc))
		}
		t.objects[rec+1+i] = v
		return
	}
	panic(fmt.Sprintf("fiber: SetLocal with no frame on %v", t))
}

// pushFrame writes a frame over the current terminator and returns the
// index of its header. A frame always has at least one slot since an empty
// header ends the stack; a call without locals gets a Padding slot.
func (t *Task) pushFrame(locals []any) int {
	slots := max(len(locals), 1)
	base := len(t.prims) - 1
	t.prims = append(t.prims, make([]uint64, slots+1)...)
	t.objects = append(t.objects, make([]any, slots+1)...)
	t.prims[base] = uint64(framing.MakeRecord(slots))
	t.objects[base] = nil
	if len(locals) == 0 {
		t.objects[base+1] = Padding{}
	}
	copy(t.objects[base+1:], locals)
	return base
}
