package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/DataExMachina-dev/fiberstack-go/internal/persist"
)

// DocumentFetcher loads stored snapshot documents by their path relative to
// the store's base directory.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, path string) (*structpb.Struct, error)
}

const defaultCacheCapacity = 16

// NewDocumentFetcher returns a caching fetcher reading from baseDir.
func NewDocumentFetcher(baseDir string) DocumentFetcher {
	return newCachedDocumentFetcher(newDiskDocumentFetcher(baseDir), defaultCacheCapacity)
}

// cachedDocumentFetcher coalesces concurrent loads of the same document and
// keeps a bounded number of them. Stored files are never rewritten, so
// entries never go stale.
type cachedDocumentFetcher struct {
	g           singleflight.Group
	maxCapacity int
	underlying  DocumentFetcher
	mu          struct {
		sync.Mutex
		cache map[string]*structpb.Struct
	}
}

func newCachedDocumentFetcher(underlying DocumentFetcher, maxCapacity int) *cachedDocumentFetcher {
	f := &cachedDocumentFetcher{
		maxCapacity: maxCapacity,
		underlying:  underlying,
	}
	f.mu.cache = make(map[string]*structpb.Struct)
	return f
}

func (f *cachedDocumentFetcher) getCached(path string) (*structpb.Struct, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.mu.cache[path]
	return d, ok
}

// FetchDocument implements DocumentFetcher. The returned document is owned
// by the caller.
func (f *cachedDocumentFetcher) FetchDocument(ctx context.Context, path string) (*structpb.Struct, error) {
	if d, ok := f.getCached(path); ok {
		return proto.Clone(d).(*structpb.Struct), nil
	}
	var called bool
	for {
		called = false
		di, err, _ := f.g.Do(path, func() (interface{}, error) {
			called = true
			d, err := f.underlying.FetchDocument(ctx, path)
			if err != nil {
				return nil, err
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			for len(f.mu.cache) >= f.maxCapacity && len(f.mu.cache) > 0 {
				// Map iteration order picks a random victim.
				for k := range f.mu.cache {
					delete(f.mu.cache, k)
					break
				}
			}
			f.mu.cache[path] = d
			return d, nil
		})
		// A load started by a caller that went away fails with that caller's
		// context error; try again with ours.
		retry := err != nil &&
			!called &&
			ctx.Err() == nil &&
			(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
		if retry {
			continue
		}
		if err != nil {
			return nil, err
		}
		return proto.Clone(di.(*structpb.Struct)).(*structpb.Struct), nil
	}
}

type diskDocumentFetcher struct {
	baseDir string
}

func newDiskDocumentFetcher(baseDir string) *diskDocumentFetcher {
	return &diskDocumentFetcher{baseDir: baseDir}
}

func (d *diskDocumentFetcher) FetchDocument(ctx context.Context, path string) (*structpb.Struct, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := persist.Resolve(d.baseDir, path)
	if err != nil {
		return nil, err
	}
	data, err := persist.ReadRaw(p)
	if err != nil {
		return nil, err
	}
	var doc structpb.Struct
	if err := protojson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	return &doc, nil
}
