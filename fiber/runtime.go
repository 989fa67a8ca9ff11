// Package fiber defines the narrow view of a cooperative scheduler that stack
// snapshots are taken through, and provides Scheduler, an in-process
// implementation of it.
package fiber

import (
	"context"
	"fmt"
)

// Location identifies a call site in a task's symbolic stack trace.
type Location struct {
	TypeName   string
	MethodName string
	// FileName is empty when unknown.
	FileName string
	Line     int
}

// SameMethod reports whether l and o refer to the same method of the same
// type in the same file. Line numbers are not compared.
func (l Location) SameMethod(o Location) bool {
	return l.TypeName == o.TypeName &&
		l.MethodName == o.MethodName &&
		l.FileName == o.FileName
}

func (l Location) String() string {
	if l.FileName == "" {
		return fmt.Sprintf("%s.%s", l.TypeName, l.MethodName)
	}
	return fmt.Sprintf("%s.%s(%s:%d)", l.TypeName, l.MethodName, l.FileName, l.Line)
}

// Handle identifies a task owned by a Runtime.
type Handle interface {
	TaskID() uint64
}

// Runtime is what a stack snapshot needs from a cooperative scheduler.
type Runtime interface {
	// CurrentTask returns the task whose body ctx was handed to.
	CurrentTask(ctx context.Context) (Handle, bool)
	// SymbolicTrace returns the task's call stack, innermost call first. The
	// first element is always the runtime's own reporting frame.
	SymbolicTrace(h Handle) []Location
	// Park suspends the calling task and invokes f on another goroutine while
	// the task is suspended. Park returns once the task has been resumed. It
	// must be called from the task's own goroutine.
	Park(h Handle, f func(Handle))
	// Resume makes a parked task runnable again.
	Resume(h Handle)
	// RawObjectStack and RawPrimitiveStack expose the task's stack copy. They
	// must only be read while the task is parked and must not be modified.
	RawObjectStack(h Handle) []any
	RawPrimitiveStack(h Handle) []uint64
}

type taskKey struct{}

// WithTask returns a context carrying h.
func WithTask(ctx context.Context, h Handle) context.Context {
	return context.WithValue(ctx, taskKey{}, h)
}

// TaskFromContext returns the task carried by ctx, if any.
func TaskFromContext(ctx context.Context) (Handle, bool) {
	h, ok := ctx.Value(taskKey{}).(Handle)
	return h, ok
}
