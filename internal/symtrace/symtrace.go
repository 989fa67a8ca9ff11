// Package symtrace prepares a task's symbolic stack trace for matching with
// its frame records.
package symtrace

import "github.com/DataExMachina-dev/fiberstack-go/fiber"

// Normalize drops the runtime's reporting frame from the head of trace and
// collapses each element that names the same method as the previously kept
// element. The result keeps the innermost-first order of trace.
func Normalize(trace []fiber.Location) []fiber.Location {
	if len(trace) <= 1 {
		return nil
	}
	out := make([]fiber.Location, 0, len(trace)-1)
	for _, loc := range trace[1:] {
		if n := len(out); n > 0 && out[n-1].SameMethod(loc) {
			continue
		}
		out = append(out, loc)
	}
	return out
}

// OldestFirst returns a reversed copy of trace.
func OldestFirst(trace []fiber.Location) []fiber.Location {
	out := make([]fiber.Location, len(trace))
	for i, loc := range trace {
		out[len(trace)-1-i] = loc
	}
	return out
}
