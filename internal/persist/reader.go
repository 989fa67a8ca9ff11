package persist

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/minio/highwayhash"
)

// ErrInvalidPath is returned for snapshot paths outside the base directory
// or not naming a snapshot file.
var ErrInvalidPath = errors.New("invalid snapshot path")

var fileNameRE = regexp.MustCompile(`^flowStackSnapshot(?:-(\d+))?\.json(\.zst)?$`)

// Entry describes one stored snapshot file.
type Entry struct {
	// Path is relative to the base directory and uses forward slashes.
	Path       string
	Date       string
	Identifier string
	// Seq is -1 for the unsuffixed file.
	Seq        int
	Compressed bool
	Size       int64
	ModTime    time.Time
	// Digest is the hex highwayhash of the file contents.
	Digest string
}

// List returns the snapshots below baseDir, optionally only those stored
// under identifier, ordered by date, identifier and sequence. A missing
// snapshot directory yields no entries.
func List(baseDir, identifier string) ([]Entry, error) {
	root := filepath.Join(baseDir, RootDir)
	var entries []Entry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(baseDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		e, ok := parseEntryPath(rel)
		if !ok || (identifier != "" && e.Identifier != identifier) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}
		e.Size = info.Size()
		e.ModTime = info.ModTime()
		if e.Digest, err = Digest(p); err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots in %s: %w", root, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Identifier != b.Identifier {
			return a.Identifier < b.Identifier
		}
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		return a.Path < b.Path
	})
	return entries, nil
}

// parseEntryPath parses flowStackSnapshots/<date>/<identifier>/<file>.
func parseEntryPath(rel string) (Entry, bool) {
	parts := strings.Split(rel, "/")
	if len(parts) != 4 || parts[0] != RootDir {
		return Entry{}, false
	}
	if _, err := time.Parse(dateDir, parts[1]); err != nil {
		return Entry{}, false
	}
	m := fileNameRE.FindStringSubmatch(parts[3])
	if m == nil {
		return Entry{}, false
	}
	seq := -1
	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Entry{}, false
		}
		seq = n
	}
	return Entry{
		Path:       rel,
		Date:       parts[1],
		Identifier: parts[2],
		Seq:        seq,
		Compressed: m[2] != "",
	}, true
}

// Resolve maps a path as returned in Entry.Path to a file below baseDir.
func Resolve(baseDir, rel string) (string, error) {
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	if _, ok := parseEntryPath(path.Clean(rel)); !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	return filepath.Join(baseDir, local), nil
}

// ReadRaw returns the JSON text of the snapshot file at p, decompressing it
// if needed.
func ReadRaw(p string) ([]byte, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", p, err)
	}
	if strings.HasSuffix(p, ".zst") {
		if data, err = zstdDecoder.DecodeAll(data, nil); err != nil {
			return nil, fmt.Errorf("failed to decompress snapshot %s: %w", p, err)
		}
	}
	return data, nil
}

// ReadDocument reads the snapshot file at p.
func ReadDocument(p string) (*Document, error) {
	data, err := ReadRaw(p)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", p, err)
	}
	return &doc, nil
}

var hashKey = [32]byte{}

// Digest returns the hex highwayhash of the file at p.
func Digest(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", p, err)
	}
	defer f.Close()
	hasher, err := highwayhash.New64(hashKey[:])
	if err != nil {
		return "", fmt.Errorf("failed to create hasher: %w", err)
	}
	if _, err := io.Copy(hasher, bufio.NewReader(f)); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", p, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
