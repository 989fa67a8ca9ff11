package sanitize

import (
	"math"
	"testing"
	"time"
	"unsafe"

	"github.com/DataExMachina-dev/fiberstack-go/fiber"
	"github.com/DataExMachina-dev/fiberstack-go/instrument"
	"github.com/DataExMachina-dev/fiberstack-go/internal/snapshot"
	"github.com/stretchr/testify/require"
)

type payFlow struct{ amount int }

func (payFlow) FlowName() string { return "pay" }

type driver struct{}

func (*driver) StateMachineID() uint64 { return 1 }

type vault struct{}

func (vault) SerializationToken() {}

type handle struct{}

func (handle) TaskID() uint64 { return 9 }

type account struct {
	Owner   string
	Balance int
}

type hook struct {
	Name string
	Done func()
}

type ring struct {
	Next *ring
}

func TestClassify(t *testing.T) {
	x := 1
	for _, tc := range []struct {
		v    any
		want Classification
	}{
		{nil, Classification{Class: Plain}},
		{"text", Classification{Class: Plain}},
		{42, Classification{Class: Plain}},
		{account{Owner: "a"}, Classification{Class: Plain}},
		{&account{}, Classification{Class: Plain}},
		{[]int{1}, Classification{Class: Plain}},
		{Token{ClassName: "x"}, Classification{Class: Plain}},
		{&Token{ClassName: "x"}, Classification{Class: Plain}},
		{payFlow{}, Classification{Class: Internal, TypeName: "sanitize.payFlow"}},
		{&driver{}, Classification{Class: Internal, TypeName: "sanitize.driver"}},
		{vault{}, Classification{Class: Internal, TypeName: "sanitize.vault"}},
		{handle{}, Classification{Class: Internal, TypeName: "sanitize.handle"}},
		{func() {}, Classification{Class: Internal, TypeName: "func()"}},
		{make(chan int), Classification{Class: Internal, TypeName: "chan int"}},
		{unsafe.Pointer(&x), Classification{Class: Internal, TypeName: "unsafe.Pointer"}},
		{complex(1, 2), Classification{Class: Internal, TypeName: "complex128"}},
		{hook{Name: "h"}, Classification{Class: Internal, TypeName: "sanitize.hook"}},
		{[]any{"ok", make(chan int)}, Classification{Class: Internal, TypeName: "[]interface {}"}},
		{math.NaN(), Classification{Class: Internal, TypeName: "float64"}},
		{math.Inf(1), Classification{Class: Internal, TypeName: "float64"}},
		{cycle(), Classification{Class: Internal, TypeName: "sanitize.ring"}},
		{&ring{Next: &ring{}}, Classification{Class: Plain}},
	} {
		require.Equal(t, tc.want, Classify(tc.v), "%T", tc.v)
	}
}

func cycle() *ring {
	r := &ring{}
	r.Next = r
	return r
}

var _ fiber.Handle = handle{}

type kinds map[string]instrument.Kind

func (k kinds) KindOf(typeName string) instrument.Kind { return k[typeName] }

func TestSanitize(t *testing.T) {
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	loc := func(typ string) fiber.Location {
		return fiber.Location{TypeName: typ, MethodName: "Call", FileName: "f.go", Line: 1}
	}
	in := &snapshot.Snapshot{
		CapturedAt:   at,
		SubjectClass: "app.Pay",
		Frames: []snapshot.Frame{
			{Location: loc("engine.Driver"), CapturedObjects: []any{&driver{}}},
			{Location: loc("app.Pay"), CapturedObjects: []any{payFlow{amount: 3}, account{Owner: "bob"}, nil}},
			{Location: loc("app.Vault"), CapturedObjects: []any{vault{}, func() {}}},
			{Location: loc("app.Empty"), CapturedObjects: []any{}},
		},
	}
	k := kinds{"engine.Driver": instrument.KindStateMachine, "app.Pay": instrument.KindFlowLogic}

	out := Sanitize(in, k)
	require.Equal(t, at, out.CapturedAt)
	require.Equal(t, "app.Pay", out.SubjectClass)
	require.Equal(t, []snapshot.Frame{
		{Location: loc("app.Pay"), CapturedObjects: []any{
			Token{ClassName: "sanitize.payFlow"}, account{Owner: "bob"}, nil,
		}},
		{Location: loc("app.Vault"), CapturedObjects: []any{
			Token{ClassName: "sanitize.vault"}, Token{ClassName: "func()"},
		}},
		{Location: loc("app.Empty"), CapturedObjects: []any{}},
	}, out.Frames)

	// The input is left alone.
	require.Len(t, in.Frames, 4)
	require.IsType(t, payFlow{}, in.Frames[1].CapturedObjects[0])

	require.Equal(t, out, Sanitize(out, k))
	require.Len(t, Sanitize(in, nil).Frames, 4)
}
