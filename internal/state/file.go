package state

import (
	"context"

	"github.com/codex-k8s/rrbot/internal/ledger"
)

// FileStore keeps each ledger in its own newline-delimited file.
type FileStore struct {
	paths map[string]string
}

// NewFileStore returns a store writing posts and comments to the given paths.
func NewFileStore(postsPath, commentsPath string) *FileStore {
	return &FileStore{paths: map[string]string{
		Posts:    postsPath,
		Comments: commentsPath,
	}}
}

// Load reads the named ledger file. A missing file yields an empty ledger.
func (s *FileStore) Load(ctx context.Context, name string) (*ledger.Ledger, error) {
	if err := checkName(name); err != nil {
		return ledger.New(), err
	}
	if err := ctx.Err(); err != nil {
		return ledger.New(), err
	}
	return ledger.Load(s.paths[name])
}

// Save atomically replaces the named ledger file.
func (s *FileStore) Save(ctx context.Context, name string, l *ledger.Ledger) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return ledger.Save(s.paths[name], l)
}

// Describe returns the file path of the named ledger.
func (s *FileStore) Describe(name string) string {
	return s.paths[name]
}

// Close is a no-op for files.
func (s *FileStore) Close() error { return nil }
