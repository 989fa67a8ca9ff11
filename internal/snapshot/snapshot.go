// Package snapshot captures the logical stack of a parked task.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DataExMachina-dev/fiberstack-go/fiber"
	"github.com/DataExMachina-dev/fiberstack-go/instrument"
	"github.com/DataExMachina-dev/fiberstack-go/internal/framing"
	"github.com/DataExMachina-dev/fiberstack-go/internal/park"
	"github.com/DataExMachina-dev/fiberstack-go/internal/symtrace"
)

// Snapshot is the logical stack of one task at one point in time.
type Snapshot struct {
	CapturedAt   time.Time
	SubjectClass string
	// Frames are ordered oldest call first.
	Frames []Frame
}

// Frame is one call on the stack and the locals recorded for it.
type Frame struct {
	Location        fiber.Location
	CapturedObjects []any
}

var (
	// ErrNoTask is returned when a capture is requested outside of a task.
	ErrNoTask = errors.New("not running in a task")

	// ErrSelfReference reports that a snapshot would have contained itself.
	ErrSelfReference = errors.New("snapshot references itself")
)

// Extractor captures snapshots of the tasks of one runtime.
type Extractor struct {
	rt   fiber.Runtime
	md   instrument.Source
	park *park.Coordinator
	now  func() time.Time
}

// NewExtractor creates an extractor. md may be nil, in which case every
// frame is resolved as unknown. now defaults to time.Now.
func NewExtractor(rt fiber.Runtime, md instrument.Source, now func() time.Time) *Extractor {
	if now == nil {
		now = time.Now
	}
	return &Extractor{
		rt:   rt,
		md:   md,
		park: park.NewCoordinator(rt),
		now:  now,
	}
}

// resultCell holds the frames while the task is parked. It lives on the
// capturing call's stack and is emptied before Capture returns.
type resultCell struct {
	frames []Frame
	err    error
}

func (c *resultCell) take() ([]Frame, error) {
	frames, err := c.frames, c.err
	c.frames, c.err = nil, nil
	return frames, err
}

// Capture parks the task running ctx, reads its stack and resumes it. It
// must be called from the task's own goroutine.
func (e *Extractor) Capture(ctx context.Context, subjectClass string) (*Snapshot, error) {
	h, ok := e.rt.CurrentTask(ctx)
	if !ok {
		return nil, ErrNoTask
	}
	trace := e.rt.SymbolicTrace(h)
	capturedAt := e.now()

	cell := &resultCell{}
	if err := e.park.Park(h, func(p fiber.Handle) {
		cell.frames, cell.err = e.extract(p, trace)
	}); err != nil {
		return nil, fmt.Errorf("failed to capture stack: %w", err)
	}
	frames, err := cell.take()
	if err != nil {
		return nil, fmt.Errorf("failed to capture stack: %w", err)
	}
	s := &Snapshot{
		CapturedAt:   capturedAt,
		SubjectClass: subjectClass,
		Frames:       frames,
	}
	detachSelfReferences(s, cell)
	return s, nil
}

func (e *Extractor) extract(h fiber.Handle, trace []fiber.Location) ([]Frame, error) {
	table, err := framing.BuildOffsetTable(e.rt.RawPrimitiveStack(h))
	if err != nil {
		return nil, err
	}
	resolve := func(loc fiber.Location) instrument.Flag {
		return instrument.Resolve(e.md, loc)
	}
	return Reconstruct(symtrace.Normalize(trace), resolve, table, e.rt.RawObjectStack(h))
}

// detachSelfReferences clears captured locals that point at the result cell
// and panics if the snapshot would still reach itself. fiber.Scheduler never
// exposes either to a task, but a Runtime that keeps the park callback's
// state on the task's object stack would.
func detachSelfReferences(s *Snapshot, cell *resultCell) {
	for i := range s.Frames {
		objs := s.Frames[i].CapturedObjects
		for j, o := range objs {
			switch o := o.(type) {
			case *resultCell:
				if o == cell {
					objs[j] = nil
				}
			case *Snapshot:
				if o == s {
					panic(fmt.Errorf("frame %d object %d: %w", i, j, ErrSelfReference))
				}
			}
		}
	}
}
