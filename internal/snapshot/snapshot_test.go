package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/DataExMachina-dev/fiberstack-go/fiber"
	"github.com/DataExMachina-dev/fiberstack-go/instrument"
	"github.com/stretchr/testify/require"
)

var (
	transferCall = fiber.Location{TypeName: "app.Transfer", MethodName: "Call", FileName: "transfer.go", Line: 12}
	transferSign = fiber.Location{TypeName: "app.Transfer", MethodName: "sign", FileName: "transfer.go", Line: 40}
	ledgerRecord = fiber.Location{TypeName: "app.Ledger", MethodName: "Record", FileName: "ledger.go", Line: 7}
)

func testRegistry() *instrument.Registry {
	r := instrument.NewRegistry()
	r.Register(instrument.TypeInfo{
		Name: "app.Transfer",
		Kind: instrument.KindFlowLogic,
		Methods: []instrument.Method{
			{Name: "Call", Instrumented: true},
			{Name: "sign", Instrumented: true, LocalsEliminated: true},
		},
	})
	r.Register(instrument.TypeInfo{
		Name:    "app.Ledger",
		Methods: []instrument.Method{{Name: "Record", Instrumented: true}},
	})
	return r
}

func runTask(t *testing.T, s *fiber.Scheduler, fn func(ctx context.Context, task *fiber.Task)) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	task := s.Spawn(ctx, t.Name(), fn)
	require.NoError(t, s.Run(ctx))
	require.NoError(t, task.Wait(ctx))
}

func TestCapture(t *testing.T) {
	reg := testRegistry()
	s := fiber.NewScheduler(reg)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e := NewExtractor(s, reg, func() time.Time { return at })

	var snap *Snapshot
	var captureErr error
	var localsAfter []any
	runTask(t, s, func(ctx context.Context, task *fiber.Task) {
		task.Enter(transferCall, "alice", 100)
		defer task.Exit()
		task.Enter(transferSign)
		defer task.Exit()
		task.Enter(ledgerRecord, "entry-1")
		defer task.Exit()
		snap, captureErr = e.Capture(ctx, "app.Transfer")
		localsAfter = append(localsAfter, s.RawObjectStack(task)...)
	})
	require.NoError(t, captureErr)
	require.Equal(t, at, snap.CapturedAt)
	require.Equal(t, "app.Transfer", snap.SubjectClass)
	require.Equal(t, []Frame{
		{Location: fiber.EntryLocation, CapturedObjects: []any{}},
		{Location: transferCall, CapturedObjects: []any{"alice", 100}},
		{Location: transferSign, CapturedObjects: []any{}},
		{Location: ledgerRecord, CapturedObjects: []any{"entry-1"}},
	}, snap.Frames)

	// The task's own stack is untouched by the capture.
	require.Equal(t, []any{nil, "alice", 100, nil, "entry-1", nil}, localsAfter)
}

func TestCaptureTwice(t *testing.T) {
	reg := testRegistry()
	s := fiber.NewScheduler(reg)
	e := NewExtractor(s, reg, nil)
	var first, second *Snapshot
	runTask(t, s, func(ctx context.Context, task *fiber.Task) {
		task.Enter(transferCall, "alice", 1)
		defer task.Exit()
		var err error
		if first, err = e.Capture(ctx, "app.Transfer"); err != nil {
			panic(err)
		}
		task.SetLocal(1, 2)
		if second, err = e.Capture(ctx, "app.Transfer"); err != nil {
			panic(err)
		}
	})
	require.Equal(t, []any{"alice", 1}, first.Frames[1].CapturedObjects)
	require.Equal(t, []any{"alice", 2}, second.Frames[1].CapturedObjects)
}

func TestCaptureOutsideTask(t *testing.T) {
	s := fiber.NewScheduler(nil)
	e := NewExtractor(s, nil, nil)
	_, err := e.Capture(context.Background(), "app.Transfer")
	require.ErrorIs(t, err, ErrNoTask)
}

func TestDetachSelfReferences(t *testing.T) {
	cell := &resultCell{}
	other := &resultCell{}
	earlier := &Snapshot{}
	s := &Snapshot{Frames: []Frame{
		{CapturedObjects: []any{cell, other, earlier, "x"}},
	}}
	detachSelfReferences(s, cell)
	require.Equal(t, []any{nil, other, earlier, "x"}, s.Frames[0].CapturedObjects)

	s.Frames[0].CapturedObjects[3] = s
	require.Panics(t, func() { detachSelfReferences(s, cell) })
}

func TestCaptureCallWithoutLocals(t *testing.T) {
	reg := testRegistry()
	s := fiber.NewScheduler(reg)
	e := NewExtractor(s, reg, nil)
	var snap *Snapshot
	runTask(t, s, func(ctx context.Context, task *fiber.Task) {
		task.Enter(transferCall)
		defer task.Exit()
		task.Enter(ledgerRecord, nil)
		defer task.Exit()
		var err error
		if snap, err = e.Capture(ctx, "app.Transfer"); err != nil {
			panic(err)
		}
	})
	require.Equal(t, []Frame{
		{Location: fiber.EntryLocation, CapturedObjects: []any{}},
		{Location: transferCall, CapturedObjects: []any{}},
		{Location: ledgerRecord, CapturedObjects: []any{nil}},
	}, snap.Frames)
}
