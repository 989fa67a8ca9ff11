package storeapi

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/DataExMachina-dev/fiberstack-go/internal/persist"
)

// EncodeEntries converts a listing to its wire form.
func EncodeEntries(entries []persist.Entry) (*structpb.ListValue, error) {
	values := make([]any, 0, len(entries))
	for _, e := range entries {
		values = append(values, map[string]any{
			"path":       e.Path,
			"date":       e.Date,
			"identifier": e.Identifier,
			"seq":        e.Seq,
			"compressed": e.Compressed,
			"size":       e.Size,
			"modTime":    e.ModTime.UTC().Format(time.RFC3339Nano),
			"digest":     e.Digest,
		})
	}
	lv, err := structpb.NewList(values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot list: %w", err)
	}
	return lv, nil
}

// DecodeEntries is the inverse of EncodeEntries.
func DecodeEntries(lv *structpb.ListValue) ([]persist.Entry, error) {
	entries := make([]persist.Entry, 0, len(lv.GetValues()))
	for i, v := range lv.GetValues() {
		s := v.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("snapshot list entry %d is not a struct", i)
		}
		f := s.GetFields()
		e := persist.Entry{
			Path:       f["path"].GetStringValue(),
			Date:       f["date"].GetStringValue(),
			Identifier: f["identifier"].GetStringValue(),
			Seq:        int(f["seq"].GetNumberValue()),
			Compressed: f["compressed"].GetBoolValue(),
			Size:       int64(f["size"].GetNumberValue()),
			Digest:     f["digest"].GetStringValue(),
		}
		if mt := f["modTime"].GetStringValue(); mt != "" {
			t, err := time.Parse(time.RFC3339Nano, mt)
			if err != nil {
				return nil, fmt.Errorf("failed to parse modification time of %s: %w", e.Path, err)
			}
			e.ModTime = t
		}
		entries = append(entries, e)
	}
	return entries, nil
}
