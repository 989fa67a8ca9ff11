// Package sanitize replaces engine internals and unserializable values in a
// snapshot with opaque tokens.
package sanitize

import (
	"encoding/json"
	"reflect"

	"github.com/DataExMachina-dev/fiberstack-go/fiber"
	"github.com/DataExMachina-dev/fiberstack-go/instrument"
	"github.com/DataExMachina-dev/fiberstack-go/internal/snapshot"
)

// FlowLogic is implemented by user flow types.
type FlowLogic interface {
	FlowName() string
}

// StateMachine is implemented by the engine types that drive flows.
type StateMachine interface {
	StateMachineID() uint64
}

// SerializationToken is implemented by services that are only ever
// serialized by reference.
type SerializationToken interface {
	SerializationToken()
}

// Token stands in for an object that was removed from a snapshot.
type Token struct {
	ClassName string `json:"className"`
}

// Class is the outcome of classifying an object.
type Class int

const (
	Plain Class = iota
	Internal
)

// Classification is the result of Classify.
type Classification struct {
	Class Class
	// TypeName is set for Internal objects.
	TypeName string
}

// Classify decides whether v may appear in a persisted snapshot as is. A
// value that cannot be encoded as JSON, for example because it holds a func
// field, a NaN or a pointer cycle, is Internal.
func Classify(v any) Classification {
	switch v.(type) {
	case nil, Token, *Token:
		return Classification{Class: Plain}
	case FlowLogic, StateMachine, SerializationToken, fiber.Handle:
		return Classification{Class: Internal, TypeName: TypeName(v)}
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer,
		reflect.Complex64, reflect.Complex128:
		return Classification{Class: Internal, TypeName: TypeName(v)}
	}
	if _, err := json.Marshal(v); err != nil {
		return Classification{Class: Internal, TypeName: TypeName(v)}
	}
	return Classification{Class: Plain}
}

// TypeName returns the name of v's type, looking through pointers.
func TypeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "nil"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}

// Kinds reports the kind of a declaring type.
type Kinds interface {
	KindOf(typeName string) instrument.Kind
}

// Sanitize returns a copy of s in which every Internal object is replaced by
// a Token and the frames of state machine types are removed. s is not
// modified. A nil kinds keeps every frame.
func Sanitize(s *snapshot.Snapshot, kinds Kinds) *snapshot.Snapshot {
	out := &snapshot.Snapshot{
		CapturedAt:   s.CapturedAt,
		SubjectClass: s.SubjectClass,
		Frames:       make([]snapshot.Frame, 0, len(s.Frames)),
	}
	for _, f := range s.Frames {
		if kinds != nil && kinds.KindOf(f.Location.TypeName) == instrument.KindStateMachine {
			continue
		}
		objs := make([]any, len(f.CapturedObjects))
		for i, o := range f.CapturedObjects {
			if c := Classify(o); c.Class == Internal {
				o = Token{ClassName: c.TypeName}
			}
			objs[i] = o
		}
		out.Frames = append(out.Frames, snapshot.Frame{Location: f.Location, CapturedObjects: objs})
	}
	return out
}
