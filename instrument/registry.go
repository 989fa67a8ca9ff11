// Package instrument holds the metadata an instrumenter records about the
// types and methods it rewrote, and answers the questions stack snapshots
// ask of it.
package instrument

import (
	"fmt"
	"sync"

	"github.com/DataExMachina-dev/fiberstack-go/fiber"
)

// Kind classifies a type for the purposes of stack snapshots.
type Kind int

const (
	// KindPlain is any type the engine knows nothing special about.
	KindPlain Kind = iota
	// KindFlowLogic marks the user-facing flow types.
	KindFlowLogic
	// KindStateMachine marks the engine's own driver types. Their frames are
	// removed from sanitized snapshots.
	KindStateMachine
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindFlowLogic:
		return "flow-logic"
	case KindStateMachine:
		return "state-machine"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Method describes one method of an instrumented type.
type Method struct {
	Name string
	// Instrumented is false for methods the instrumenter never looked at.
	Instrumented bool
	// LocalsEliminated is set when the instrumenter proved that no locals of
	// the method survive a suspension, so the method owns no frame.
	LocalsEliminated bool
}

// TypeInfo describes a type as recorded by the instrumenter.
type TypeInfo struct {
	Name string
	Kind Kind
	// Embeds names the types whose kind this type inherits.
	Embeds  []string
	Methods []Method
}

// Source answers whether a method's locals were eliminated. ok is false if
// the method is unknown.
type Source interface {
	IsLocalsEliminated(typeName, methodName string) (eliminated, ok bool)
}

// Metadata is everything snapshots need from the instrumenter.
type Metadata interface {
	Source
	KindOf(typeName string) Kind
}

// Registry is an in-memory Metadata.
type Registry struct {
	mu    sync.RWMutex
	types map[string]TypeInfo
}

var (
	_ Metadata              = (*Registry)(nil)
	_ fiber.Instrumentation = (*Registry)(nil)
)

// NewRegistry returns a registry that already knows the scheduler's entry
// frame.
func NewRegistry() *Registry {
	r := &Registry{types: make(map[string]TypeInfo)}
	r.Register(TypeInfo{
		Name: fiber.EntryLocation.TypeName,
		Kind: KindStateMachine,
		Methods: []Method{
			{Name: fiber.EntryLocation.MethodName},
		},
	})
	return r
}

// Register adds info, replacing any previous registration for the same type.
func (r *Registry) Register(info TypeInfo) {
	info.Embeds = append([]string(nil), info.Embeds...)
	info.Methods = append([]Method(nil), info.Methods...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[info.Name] = info
}

// Lookup returns the registration for typeName.
func (r *Registry) Lookup(typeName string) (TypeInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.types[typeName]
	return info, ok
}

// IsLocalsEliminated implements Source. Methods that were never instrumented
// are reported as unknown.
func (r *Registry) IsLocalsEliminated(typeName, methodName string) (eliminated, ok bool) {
	info, found := r.Lookup(typeName)
	if !found {
		return false, false
	}
	for _, m := range info.Methods {
		if m.Name == methodName {
			return m.LocalsEliminated, m.Instrumented
		}
	}
	return false, false
}

// KindOf implements Metadata. A type that is not itself a flow or state
// machine type inherits the kind of the first embedded type that is.
func (r *Registry) KindOf(typeName string) Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.kindOfLocked(typeName, make(map[string]struct{}))
}

func (r *Registry) kindOfLocked(typeName string, seen map[string]struct{}) Kind {
	if _, ok := seen[typeName]; ok {
		return KindPlain
	}
	seen[typeName] = struct{}{}
	info, ok := r.types[typeName]
	if !ok {
		return KindPlain
	}
	if info.Kind != KindPlain {
		return info.Kind
	}
	for _, e := range info.Embeds {
		if k := r.kindOfLocked(e, seen); k != KindPlain {
			return k
		}
	}
	return KindPlain
}

// Flag is the resolved instrumentation state of one frame.
type Flag struct {
	Known            bool
	LocalsEliminated bool
}

// Resolve looks up the frame at loc. A nil src resolves everything as
// unknown.
func Resolve(src Source, loc fiber.Location) Flag {
	if src == nil {
		return Flag{}
	}
	eliminated, ok := src.IsLocalsEliminated(loc.TypeName, loc.MethodName)
	if !ok {
		return Flag{}
	}
	return Flag{Known: true, LocalsEliminated: eliminated}
}
