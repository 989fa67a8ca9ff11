// Package persist writes sanitized snapshots to disk as JSON documents and
// reads them back.
package persist

import (
	"github.com/DataExMachina-dev/fiberstack-go/internal/snapshot"
)

// Document is the on-disk form of a snapshot.
type Document struct {
	// Timestamp is the capture time in Unix milliseconds.
	Timestamp    int64   `json:"timestamp"`
	SubjectClass string  `json:"subjectClass,omitempty"`
	StackFrames  []Frame `json:"stackFrames,omitempty"`
}

// Frame is the on-disk form of a snapshot frame.
type Frame struct {
	StackTraceElement StackTraceElement `json:"stackTraceElement"`
	StackObjects      []any             `json:"stackObjects,omitempty"`
}

// StackTraceElement is the on-disk form of a frame location.
type StackTraceElement struct {
	ClassName  string `json:"className,omitempty"`
	MethodName string `json:"methodName,omitempty"`
	FileName   string `json:"fileName,omitempty"`
	LineNumber int    `json:"lineNumber"`
}

// NewDocument converts s. Objects are not copied.
func NewDocument(s *snapshot.Snapshot) *Document {
	d := &Document{
		Timestamp:    s.CapturedAt.UnixMilli(),
		SubjectClass: s.SubjectClass,
	}
	for _, f := range s.Frames {
		d.StackFrames = append(d.StackFrames, Frame{
			StackTraceElement: StackTraceElement{
				ClassName:  f.Location.TypeName,
				MethodName: f.Location.MethodName,
				FileName:   f.Location.FileName,
				LineNumber: f.Location.Line,
			},
			StackObjects: f.CapturedObjects,
		})
	}
	return d
}
