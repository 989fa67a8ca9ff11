package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/DataExMachina-dev/fiberstack-go/internal/persist"
	"github.com/DataExMachina-dev/fiberstack-go/internal/storeapi"
)

var testNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func testDocument(subject string) *persist.Document {
	return &persist.Document{
		Timestamp:    testNow.UnixMilli(),
		SubjectClass: subject,
		StackFrames: []persist.Frame{{
			StackTraceElement: persist.StackTraceElement{
				ClassName: subject, MethodName: "Call", FileName: "flow.go", LineNumber: 4,
			},
			StackObjects: []any{"x", 1, nil, map[string]any{"className": "app.Vault"}},
		}},
	}
}

type testStore struct {
	baseDir string
	client  storeapi.SnapshotStoreClient
	plain   string
	zstd    string
}

func startStore(t *testing.T) *testStore {
	t.Helper()
	ts := &testStore{baseDir: t.TempDir()}
	w := &persist.Writer{BaseDir: ts.baseDir, Now: func() time.Time { return testNow }}
	var err error
	ts.plain, err = w.Write(testDocument("app.Pay"), "pay-1")
	require.NoError(t, err)
	w.Compression = persist.Zstd
	ts.zstd, err = w.Write(testDocument("app.Refund"), "refund-1")
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	storeapi.RegisterSnapshotStoreServer(s, NewServer(
		uuid.New(), ts.baseDir, persist.None, NewDocumentFetcher(ts.baseDir), nil))
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	ts.client = storeapi.NewSnapshotStoreClient(conn)
	return ts
}

func TestServerInfo(t *testing.T) {
	ts := startStore(t)
	info, err := ts.client.Info(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)
	f := info.GetFields()
	_, err = uuid.Parse(f["fingerprint"].GetStringValue())
	require.NoError(t, err)
	require.Equal(t, float64(os.Getpid()), f["pid"].GetNumberValue())
	require.Equal(t, ts.baseDir, f["baseDir"].GetStringValue())
	require.Equal(t, "none", f["compression"].GetStringValue())
}

func TestServerListSnapshots(t *testing.T) {
	ts := startStore(t)
	ctx := context.Background()
	lv, err := ts.client.ListSnapshots(ctx, wrapperspb.String(""))
	require.NoError(t, err)
	entries, err := storeapi.DecodeEntries(lv)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "pay-1", entries[0].Identifier)
	require.Equal(t, "refund-1", entries[1].Identifier)
	require.True(t, entries[1].Compressed)

	lv, err = ts.client.ListSnapshots(ctx, wrapperspb.String("refund-1"))
	require.NoError(t, err)
	require.Len(t, lv.GetValues(), 1)

	_, err = ts.client.ListSnapshots(ctx, wrapperspb.String("../x"))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServerGetSnapshot(t *testing.T) {
	ts := startStore(t)
	ctx := context.Background()
	lv, err := ts.client.ListSnapshots(ctx, wrapperspb.String(""))
	require.NoError(t, err)
	entries, err := storeapi.DecodeEntries(lv)
	require.NoError(t, err)

	for i, p := range []string{ts.plain, ts.zstd} {
		doc, err := ts.client.GetSnapshot(ctx, wrapperspb.String(entries[i].Path))
		require.NoError(t, err)
		raw, err := persist.ReadRaw(p)
		require.NoError(t, err)
		got, err := protojson.Marshal(doc)
		require.NoError(t, err)
		require.JSONEq(t, string(raw), string(got))
	}

	_, err = ts.client.GetSnapshot(ctx, wrapperspb.String("../secret.json"))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = ts.client.GetSnapshot(ctx,
		wrapperspb.String("flowStackSnapshots/2024-03-01/pay-1/flowStackSnapshot-7.json"))
	require.Equal(t, codes.NotFound, status.Code(err))
}

func TestServerDownloadSnapshot(t *testing.T) {
	ts := startStore(t)
	ctx := context.Background()
	lv, err := ts.client.ListSnapshots(ctx, wrapperspb.String("refund-1"))
	require.NoError(t, err)
	entries, err := storeapi.DecodeEntries(lv)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	stream, err := ts.client.DownloadSnapshot(ctx, wrapperspb.String(entries[0].Path))
	require.NoError(t, err)
	var buf bytes.Buffer
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		buf.Write(chunk.GetValue())
	}
	want, err := os.ReadFile(ts.zstd)
	require.NoError(t, err)
	require.Equal(t, want, buf.Bytes())

	stream, err = ts.client.DownloadSnapshot(ctx, wrapperspb.String("/etc/passwd"))
	require.NoError(t, err)
	_, err = stream.Recv()
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

type countingFetcher struct {
	calls   atomic.Int32
	release chan struct{}
}

func (f *countingFetcher) FetchDocument(ctx context.Context, path string) (*structpb.Struct, error) {
	f.calls.Add(1)
	<-f.release
	return structpb.NewStruct(map[string]any{"path": path})
}

func TestCachedDocumentFetcher(t *testing.T) {
	under := &countingFetcher{release: make(chan struct{})}
	f := newCachedDocumentFetcher(under, 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*structpb.Struct, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := f.FetchDocument(ctx, "a")
			if err == nil {
				results[i] = d
			}
		}(i)
	}
	// Give the goroutines a chance to join the in-flight load.
	time.Sleep(20 * time.Millisecond)
	close(under.release)
	wg.Wait()
	require.LessOrEqual(t, under.calls.Load(), int32(4))
	for _, d := range results {
		require.NotNil(t, d)
		require.Equal(t, "a", d.GetFields()["path"].GetStringValue())
	}

	// Cached: the underlying fetcher is not called again, and callers get
	// their own copy.
	before := under.calls.Load()
	d, err := f.FetchDocument(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, before, under.calls.Load())
	d.Fields["path"] = structpb.NewStringValue("mutated")
	d, err = f.FetchDocument(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "a", d.GetFields()["path"].GetStringValue())

	// Capacity 1: loading another document evicts the first.
	_, err = f.FetchDocument(ctx, "b")
	require.NoError(t, err)
	_, err = f.FetchDocument(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, before+2, under.calls.Load())
}
