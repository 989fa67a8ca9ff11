// Package park suspends a task so that its stack can be read safely.
package park

import (
	"errors"
	"fmt"
	"sync"

	"github.com/DataExMachina-dev/fiberstack-go/fiber"
)

// ErrAlreadyParked is returned when the task is already parked by this
// coordinator.
var ErrAlreadyParked = errors.New("task is already parked")

// Coordinator parks tasks of one runtime on behalf of snapshot requests.
type Coordinator struct {
	rt fiber.Runtime
	mu struct {
		sync.Mutex
		parked map[uint64]struct{}
	}
}

// NewCoordinator creates a coordinator for rt.
func NewCoordinator(rt fiber.Runtime) *Coordinator {
	c := &Coordinator{rt: rt}
	c.mu.parked = make(map[uint64]struct{})
	return c
}

// Park suspends h, the calling task, and calls f with the task suspended.
// The task is resumed exactly once after f returns, even if f panics, and
// Park returns after the task is running again.
//
// f must not block or yield. A panic in f is returned as an error.
func (c *Coordinator) Park(h fiber.Handle, f func(fiber.Handle)) (err error) {
	id := h.TaskID()
	c.mu.Lock()
	if _, ok := c.mu.parked[id]; ok {
		c.mu.Unlock()
		return fmt.Errorf("failed to park task %d: %w", id, ErrAlreadyParked)
	}
	c.mu.parked[id] = struct{}{}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.mu.parked, id)
		c.mu.Unlock()
	}()

	c.rt.Park(h, func(p fiber.Handle) {
		defer c.rt.Resume(p)
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic while task %d was parked: %v", id, r)
			}
		}()
		f(p)
	})
	return err
}
