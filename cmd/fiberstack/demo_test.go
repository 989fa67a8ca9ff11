package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DataExMachina-dev/fiberstack-go/fiberstack"
	"github.com/DataExMachina-dev/fiberstack-go/internal/persist"
)

func TestRunDemo(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	paths, err := runDemo(ctx, 2,
		fiberstack.WithSnapshotDir(dir),
		fiberstack.WithClock(func() time.Time { return at }),
	)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "flowStackSnapshots", "2024-03-01", "transfer-0", "flowStackSnapshot.json"),
		filepath.Join(dir, "flowStackSnapshots", "2024-03-01", "transfer-1", "flowStackSnapshot.json"),
	}, paths)

	doc, err := persist.ReadDocument(paths[1])
	require.NoError(t, err)
	require.Equal(t, at.UnixMilli(), doc.Timestamp)
	require.Equal(t, "demo.Transfer", doc.SubjectClass)
	require.Len(t, doc.StackFrames, 2)
	require.Equal(t, "demo.Transfer", doc.StackFrames[0].StackTraceElement.ClassName)
	require.Equal(t, "Call", doc.StackFrames[0].StackTraceElement.MethodName)
	require.Equal(t, []any{"transfer-1", float64(200)}, doc.StackFrames[0].StackObjects)
	require.Equal(t, "Append", doc.StackFrames[1].StackTraceElement.MethodName)
	require.Len(t, doc.StackFrames[1].StackObjects, 1)
	ledger, ok := doc.StackFrames[1].StackObjects[0].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "main", ledger["name"])
}

func TestDemoCommand(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"demo", "--dir", dir, "--tasks", "3", "--compression", "zstd"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	for _, l := range lines {
		require.True(t, strings.HasSuffix(l, ".json.zst"), l)
	}
	entries, err := persist.List(dir, "")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		require.True(t, e.Compressed)
	}

	cmd = newRootCmd()
	cmd.SetArgs([]string{"demo", "--dir", dir, "--tasks", "0"})
	require.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestPrintEntries(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printEntries(&out, []persist.Entry{{
		Path:    "flowStackSnapshots/2024-03-01/pay/flowStackSnapshot.json",
		Size:    2048,
		ModTime: time.Now(),
		Digest:  "00ff",
	}}))
	require.Contains(t, out.String(), "PATH")
	require.Contains(t, out.String(), "2.0 kB")
	require.Contains(t, out.String(), "00ff")
}
