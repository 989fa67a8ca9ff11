package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	// RootDir is the directory under the base directory that holds all
	// snapshots.
	RootDir = "flowStackSnapshots"

	fileStem = "flowStackSnapshot"
	dateDir  = "2006-01-02"

	// maxSuffix bounds the search for a free file name.
	maxSuffix = 1 << 20
)

// ErrInvalidIdentifier is returned for identifiers that are not a single
// path element.
var ErrInvalidIdentifier = errors.New("invalid snapshot identifier")

// Compression selects how documents are stored.
type Compression int

const (
	None Compression = iota
	Zstd
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", int(c))
	}
}

// ParseCompression parses the String form of a Compression. The empty
// string is None.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return None, nil
	case "zstd":
		return Zstd, nil
	default:
		return None, fmt.Errorf("unknown compression %q", s)
	}
}

func (c Compression) ext() string {
	if c == Zstd {
		return ".json.zst"
	}
	return ".json"
}

var (
	// The encoder and decoder are safe for concurrent use with EncodeAll and
	// DecodeAll.
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// Writer writes documents below BaseDir.
type Writer struct {
	BaseDir     string
	Compression Compression
	// Now picks the date directory. Defaults to time.Now.
	Now func() time.Time
}

// Write stores doc as
//
//	<BaseDir>/flowStackSnapshots/<date>/<identifier>/flowStackSnapshot.json
//
// creating directories as needed. If that file exists, the first free name
// out of flowStackSnapshot-0.json, flowStackSnapshot-1.json, ... is used.
// Existing files are never overwritten. Write returns the path written.
func (w *Writer) Write(doc *Document, identifier string) (string, error) {
	if err := ValidateIdentifier(identifier); err != nil {
		return "", err
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	dir := filepath.Join(w.BaseDir, RootDir, now().Format(dateDir), identifier)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	data = append(data, '\n')
	if w.Compression == Zstd {
		data = zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)))
	}

	f, err := claim(dir, w.Compression.ext())
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write snapshot to %s: %w", f.Name(), err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to close snapshot file %s: %w", f.Name(), err)
	}
	return f.Name(), nil
}

// claim creates the first free snapshot file in dir.
func claim(dir, ext string) (*os.File, error) {
	for i := -1; i < maxSuffix; i++ {
		p := filepath.Join(dir, fileName(i, ext))
		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create snapshot file %s: %w", p, err)
		}
		return f, nil
	}
	return nil, fmt.Errorf("failed to find a free snapshot file name in %s", dir)
}

// fileName returns the name of the seq'th snapshot file. seq -1 is the
// unsuffixed name.
func fileName(seq int, ext string) string {
	if seq < 0 {
		return fileStem + ext
	}
	return fmt.Sprintf("%s-%d%s", fileStem, seq, ext)
}

// ValidateIdentifier checks that id can name a snapshot directory.
func ValidateIdentifier(id string) error {
	if id == "" || id == "." || id == ".." ||
		strings.ContainsAny(id, `/\`) || !filepath.IsLocal(id) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return nil
}
