// Package server implements the SnapshotStore gRPC service over a snapshot
// directory.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/DataExMachina-dev/fiberstack-go/internal/persist"
	"github.com/DataExMachina-dev/fiberstack-go/internal/storeapi"
)

// chunkSize is the size of the chunks DownloadSnapshot streams.
const chunkSize = 128 << 10

// Server implements the storeapi.SnapshotStoreServer interface.
type Server struct {
	fingerprint uuid.UUID
	baseDir     string
	compression persist.Compression
	startTime   time.Time
	fetcher     DocumentFetcher
	errorLogger func(error)
	// logLimiter bounds the rate of reported errors.
	logLimiter *rate.Limiter
	hash       binaryHashOnce

	storeapi.UnimplementedSnapshotStoreServer
}

var _ storeapi.SnapshotStoreServer = (*Server)(nil)

type binaryHashOnce struct {
	sync.Once
	hash string
	err  error
}

// NewServer constructs a new Server object. errorLogger may be nil.
func NewServer(
	fingerprint uuid.UUID,
	baseDir string,
	compression persist.Compression,
	fetcher DocumentFetcher,
	errorLogger func(error),
) *Server {
	if errorLogger == nil {
		errorLogger = func(error) {}
	}
	return &Server{
		fingerprint: fingerprint,
		baseDir:     baseDir,
		compression: compression,
		startTime:   time.Now(),
		fetcher:     fetcher,
		errorLogger: errorLogger,
		logLimiter:  rate.NewLimiter(rate.Every(time.Second), 10),
	}
}

// Info implements storeapi.SnapshotStoreServer.
func (s *Server) Info(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	fields := map[string]any{
		"fingerprint": s.fingerprint.String(),
		"pid":         os.Getpid(),
		"startTime":   s.startTime.UTC().Format(time.RFC3339Nano),
		"baseDir":     s.baseDir,
		"compression": s.compression.String(),
	}
	if hash, err := s.getBinaryHash(); err != nil {
		s.logError(err)
	} else {
		fields["binaryHash"] = hash
	}
	info, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode info: %v", err)
	}
	return info, nil
}

// ListSnapshots implements storeapi.SnapshotStoreServer.
func (s *Server) ListSnapshots(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	identifier := req.GetValue()
	if identifier != "" {
		if err := persist.ValidateIdentifier(identifier); err != nil {
			return nil, s.toStatus(err)
		}
	}
	entries, err := persist.List(s.baseDir, identifier)
	if err != nil {
		return nil, s.toStatus(err)
	}
	lv, err := storeapi.EncodeEntries(entries)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return lv, nil
}

// GetSnapshot implements storeapi.SnapshotStoreServer.
func (s *Server) GetSnapshot(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	doc, err := s.fetcher.FetchDocument(ctx, req.GetValue())
	if err != nil {
		return nil, s.toStatus(err)
	}
	return doc, nil
}

// DownloadSnapshot implements storeapi.SnapshotStoreServer.
func (s *Server) DownloadSnapshot(req *wrapperspb.StringValue, stream storeapi.SnapshotStore_DownloadSnapshotServer) error {
	p, err := persist.Resolve(s.baseDir, req.GetValue())
	if err != nil {
		return s.toStatus(err)
	}
	f, err := os.Open(p)
	if err != nil {
		return s.toStatus(err)
	}
	defer f.Close()
	buf := make([]byte, chunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if err := stream.Send(wrapperspb.Bytes(buf[:n])); err != nil {
				return fmt.Errorf("failed to send chunk: %w", err)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return s.toStatus(fmt.Errorf("failed to read %s: %w", p, err))
		}
	}
}

// toStatus maps err to a gRPC status. Errors that are not the client's fault
// are logged.
func (s *Server) toStatus(err error) error {
	switch {
	case errors.Is(err, persist.ErrInvalidPath), errors.Is(err, persist.ErrInvalidIdentifier):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, fs.ErrNotExist):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		s.logError(err)
		return status.Error(codes.Internal, err.Error())
	}
}

func (s *Server) logError(err error) {
	if s.logLimiter.Allow() {
		s.errorLogger(err)
	}
}

func (s *Server) getBinaryHash() (string, error) {
	s.hash.Once.Do(func() {
		s.hash.hash, s.hash.err = doHash()
	})
	return s.hash.hash, s.hash.err
}

func doHash() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	hash, err := persist.Digest(exe)
	if err != nil {
		return "", fmt.Errorf("failed to hash executable: %w", err)
	}
	return hash, nil
}
