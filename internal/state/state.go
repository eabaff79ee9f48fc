// Package state persists the reply ledgers between passes.
package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/codex-k8s/rrbot/internal/config"
	"github.com/codex-k8s/rrbot/internal/ledger"
)

const (
	// Posts names the ledger of replied post ids.
	Posts = "posts"
	// Comments names the ledger of replied comment ids.
	Comments = "comments"
)

// Names lists the ledgers a store holds, in load order.
var Names = []string{Posts, Comments}

// Store loads and saves named ledgers.
type Store interface {
	// Load returns the named ledger. A store that cannot read it returns an empty
	// ledger together with the error so callers may continue.
	Load(ctx context.Context, name string) (*ledger.Ledger, error)
	// Save fully replaces the persisted contents of the named ledger.
	Save(ctx context.Context, name string, l *ledger.Ledger) error
	// Describe returns a human readable location for logs and doctor output.
	Describe(name string) string
	io.Closer
}

// UnknownLedgerError is returned for ledger names other than Posts and Comments.
type UnknownLedgerError struct {
	Name string
}

func (e *UnknownLedgerError) Error() string {
	if e == nil {
		return "unknown ledger"
	}
	return fmt.Sprintf("unknown ledger %q", e.Name)
}

// IsUnknownLedgerError reports whether err names an unknown ledger.
func IsUnknownLedgerError(err error) bool {
	var target *UnknownLedgerError
	return errors.As(err, &target)
}

func checkName(name string) error {
	switch name {
	case Posts, Comments:
		return nil
	default:
		return &UnknownLedgerError{Name: name}
	}
}

// Open constructs the store selected by cfg.State.Backend.
func Open(cfg *config.Config, logger *slog.Logger) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	switch cfg.State.Backend {
	case "", "file":
		store := NewFileStore(cfg.ResolvePath(cfg.State.PostsFile), cfg.ResolvePath(cfg.State.CommentsFile))
		logger.Debug("using file state backend", "posts", store.Describe(Posts), "comments", store.Describe(Comments))
		return store, nil
	case "sqlite":
		path := cfg.ResolvePath(cfg.State.SQLitePath)
		store, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		logger.Debug("using sqlite state backend", "path", path)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported state backend %q", cfg.State.Backend)
	}
}

// LoadAll loads every ledger in Names. Read failures are returned joined alongside
// empty ledgers for the affected names.
func LoadAll(ctx context.Context, s Store) (map[string]*ledger.Ledger, error) {
	out := make(map[string]*ledger.Ledger, len(Names))
	var errs []error
	for _, name := range Names {
		l, err := s.Load(ctx, name)
		if l == nil {
			l = ledger.New()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("load %s ledger: %w", name, err))
		}
		out[name] = l
	}
	return out, errors.Join(errs...)
}
