// Package fiberstack captures the logical call stacks of suspended fibers,
// together with the locals recorded for each frame, and stores them as JSON
// documents.
//
// A capture is requested from inside a task:
//
//	e := fiberstack.NewExtractor(sched, registry)
//	path, err := e.PersistSnapshot(ctx, "app.Transfer", "", "transfer-42")
//
// The calling task is parked for the duration of the stack read and resumes
// before the call returns.
package fiberstack

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/DataExMachina-dev/fiberstack-go/fiber"
	"github.com/DataExMachina-dev/fiberstack-go/instrument"
	"github.com/DataExMachina-dev/fiberstack-go/internal/persist"
	"github.com/DataExMachina-dev/fiberstack-go/internal/sanitize"
	"github.com/DataExMachina-dev/fiberstack-go/internal/snapshot"
)

type (
	// Snapshot is the logical stack of one task at one point in time.
	Snapshot = snapshot.Snapshot
	// Frame is one call of a Snapshot.
	Frame = snapshot.Frame
	// Token replaces objects that may not be persisted.
	Token = sanitize.Token
	// Document is the stored form of a Snapshot.
	Document = persist.Document
	// Compression selects how snapshots are stored.
	Compression = persist.Compression
)

const (
	NoCompression   = persist.None
	ZstdCompression = persist.Zstd
)

// ErrNoTask is returned when a snapshot is requested outside of a task.
var ErrNoTask = snapshot.ErrNoTask

// Extractor captures and stores snapshots of the tasks of one runtime.
type Extractor struct {
	cfg   config
	md    instrument.Metadata
	inner *snapshot.Extractor
}

// NewExtractor creates an extractor for the tasks of rt. md may be nil, in
// which case nothing is known about any frame and no frame is dropped when
// sanitizing.
func NewExtractor(rt fiber.Runtime, md instrument.Metadata, opts ...Option) *Extractor {
	cfg := makeConfig(opts)
	var src instrument.Source
	if md != nil {
		src = md
	}
	return &Extractor{
		cfg:   cfg,
		md:    md,
		inner: snapshot.NewExtractor(rt, src, cfg.now),
	}
}

// CaptureSnapshot returns the stack of the task running ctx. The task is
// parked while its stack is read. The snapshot holds the task's objects as
// they are; it is not sanitized.
func (e *Extractor) CaptureSnapshot(ctx context.Context, subjectClass string) (*Snapshot, error) {
	return e.inner.Capture(ctx, subjectClass)
}

// PersistError is returned by PersistSnapshot when a snapshot was captured
// but could not be stored. Snapshot can be passed to Persist again.
type PersistError struct {
	Snapshot *Snapshot
	Err      error
}

func (e *PersistError) Error() string { return e.Err.Error() }

func (e *PersistError) Unwrap() error { return e.Err }

// PersistSnapshot captures, sanitizes and stores the stack of the task
// running ctx below baseDir, grouped by the current date and identifier. An
// empty baseDir selects the configured snapshot directory, an empty
// identifier a random one. It returns the path of the written file.
//
// If storing fails the error is a *PersistError holding the captured
// snapshot.
func (e *Extractor) PersistSnapshot(ctx context.Context, subjectClass, baseDir, identifier string) (string, error) {
	s, err := e.CaptureSnapshot(ctx, subjectClass)
	if err != nil {
		return "", err
	}
	path, err := e.Persist(s, baseDir, identifier)
	if err != nil {
		return "", &PersistError{Snapshot: s, Err: err}
	}
	return path, nil
}

// Persist sanitizes and stores s the way PersistSnapshot does. s is not
// modified. Failures are also reported to the error logger.
func (e *Extractor) Persist(s *Snapshot, baseDir, identifier string) (string, error) {
	if baseDir == "" {
		baseDir = e.cfg.snapshotDir
	}
	if identifier == "" {
		identifier = uuid.NewString()
	}
	var kinds sanitize.Kinds
	if e.md != nil {
		kinds = e.md
	}
	w := persist.Writer{
		BaseDir:     baseDir,
		Compression: e.cfg.compression,
		Now:         e.cfg.now,
	}
	path, err := w.Write(persist.NewDocument(sanitize.Sanitize(s, kinds)), identifier)
	if err != nil {
		err = fmt.Errorf("failed to persist snapshot of %s: %w", s.SubjectClass, err)
		e.cfg.errorLogger(err)
		return "", err
	}
	return path, nil
}
