package snapshot

import (
	"fmt"

	"github.com/DataExMachina-dev/fiberstack-go/fiber"
	"github.com/DataExMachina-dev/fiberstack-go/instrument"
	"github.com/DataExMachina-dev/fiberstack-go/internal/framing"
	"github.com/DataExMachina-dev/fiberstack-go/internal/symtrace"
)

// Reconstruct pairs the normalized trace, innermost call first, with the
// frame records of the task's stack and returns the frames oldest first.
//
// Walking oldest first, a frame takes the next record if its locals were
// kept, or if nothing is known about it and it is not the entry frame. The
// entry frame is the oldest one. A record holding only fiber.Padding yields
// no objects. Records left over once the trace is exhausted indicate a
// corrupt stack.
func Reconstruct(
	trace []fiber.Location,
	resolve func(fiber.Location) instrument.Flag,
	table []framing.OffsetEntry,
	objects []any,
) ([]Frame, error) {
	frames := make([]Frame, 0, len(trace))
	next := 0
	for i, loc := range symtrace.OldestFirst(trace) {
		flag := resolve(loc)
		consume := flag.Known && !flag.LocalsEliminated ||
			!flag.Known && i != 0
		if !consume || next == len(table) {
			frames = append(frames, Frame{Location: loc, CapturedObjects: []any{}})
			continue
		}
		e := table[next]
		next++
		start, end := e.Offset+1, e.Offset+1+e.SlotCount
		if end > len(objects) {
			return nil, fmt.Errorf(
				"%w: frame %v needs objects [%d, %d) of %d",
				framing.ErrCorruptEncoding, loc, start, end, len(objects),
			)
		}
		captured := make([]any, e.SlotCount)
		copy(captured, objects[start:end])
		if _, ok := captured[0].(fiber.Padding); ok && e.SlotCount == 1 {
			captured = []any{}
		}
		frames = append(frames, Frame{Location: loc, CapturedObjects: captured})
	}
	if next != len(table) {
		return nil, fmt.Errorf(
			"%w: %d frame records but only %d were matched to the trace",
			framing.ErrCorruptEncoding, len(table), next,
		)
	}
	return frames, nil
}
