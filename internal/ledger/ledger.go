// Package ledger keeps the set of identifiers rrbot has already replied to.
//
// A ledger only grows: normal operation never removes an entry, because a reply that was sent
// must never be repeated. The persisted form is plain text, one identifier per line.
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Ledger is a mutex-guarded set of handled identifiers.
type Ledger struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// New returns a ledger seeded with ids. Blank ids are ignored.
func New(ids ...string) *Ledger {
	l := &Ledger{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		l.Insert(id)
	}
	return l
}

// Contains reports whether id has been handled.
func (l *Ledger) Contains(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.ids[id]
	return ok
}

// Insert marks id as handled and reports whether it was newly added.
// Inserting a present id is a no-op.
func (l *Ledger) Insert(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.ids[id]; ok {
		return false
	}
	l.ids[id] = struct{}{}
	return true
}

// Len returns the number of handled ids.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids)
}

// IDs returns a sorted copy of the handled ids.
func (l *Ledger) IDs() []string {
	l.mu.RLock()
	out := make([]string, 0, len(l.ids))
	for id := range l.ids {
		out = append(out, id)
	}
	l.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Merge inserts every id of other and returns the number of ids added.
func (l *Ledger) Merge(other *Ledger) int {
	if other == nil || other == l {
		return 0
	}
	added := 0
	for _, id := range other.IDs() {
		if l.Insert(id) {
			added++
		}
	}
	return added
}

// Read parses a line-oriented ledger. Surrounding whitespace and blank lines are ignored.
func Read(r io.Reader) (*Ledger, error) {
	l := New()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		l.Insert(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return l, err
	}
	return l, nil
}

// WriteTo writes every id on its own line in sorted order.
func (l *Ledger) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, id := range l.IDs() {
		written, err := bw.WriteString(id + "\n")
		n += int64(written)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// Load reads the ledger stored at path.
// A missing file yields an empty ledger and a nil error: the first run has no history.
// Any other failure yields an empty ledger together with the error, so callers can log it
// and carry on with empty history.
func Load(path string) (*Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(), nil
		}
		return New(), fmt.Errorf("open ledger %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	l, err := Read(f)
	if err != nil {
		return New(), fmt.Errorf("read ledger %s: %w", path, err)
	}
	return l, nil
}

// Save replaces the file at path with the full contents of l.
// The data is written to a temporary file in the same directory, synced and renamed over
// path, so a crash leaves either the old or the new ledger and never a partial one.
func Save(path string, l *Ledger) error {
	if l == nil {
		return fmt.Errorf("save ledger %s: ledger is nil", path)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := l.WriteTo(tmp); err != nil {
		return fmt.Errorf("write ledger %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync ledger %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ledger %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod ledger %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace ledger %s: %w", path, err)
	}
	committed = true
	return nil
}
