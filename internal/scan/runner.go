package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codex-k8s/rrbot/internal/state"
)

// ErrLedgerSave marks a pass whose ledgers could not be persisted.
var ErrLedgerSave = errors.New("save ledgers")

// Runner wires a Store, a Feed and a Replier into a single pass.
type Runner struct {
	Store   state.Store
	Feed    Feed
	Replier Replier
	// Match overrides the phrase matcher.
	Match  func(string) bool
	Logger *slog.Logger
	// HotTake bounds the number of posts scanned.
	HotTake int
	// MonitorOnly replaces Replier with Observe. Observed items are recorded in the ledgers.
	MonitorOnly bool
	// Clock overrides time.Now for report timestamps.
	Clock func() time.Time
}

// Run loads the ledgers, fetches posts, runs the pass and saves the ledgers.
// Ledger load failures are logged and the pass continues with empty history. A feed failure
// aborts before any reply. The report is returned even when saving fails; that error wraps
// ErrLedgerSave.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if r.Store == nil {
		return nil, fmt.Errorf("runner has no state store")
	}
	if r.Feed == nil {
		return nil, fmt.Errorf("runner has no feed")
	}
	logger := r.Logger
	if logger == nil {
		logger = discardLogger()
	}

	ledgers, err := state.LoadAll(ctx, r.Store)
	if err != nil {
		logger.Warn("ledger load failed, continuing with empty history", "error", err)
	}
	logger.Debug("ledgers loaded",
		"posts", ledgers[state.Posts].Len(),
		"comments", ledgers[state.Comments].Len(),
	)

	posts, err := r.Feed.FetchPosts(ctx, r.HotTake)
	if err != nil {
		return nil, fmt.Errorf("fetch posts: %w", err)
	}
	if r.HotTake > 0 && len(posts) > r.HotTake {
		posts = posts[:r.HotTake]
	}

	replier := r.Replier
	if r.MonitorOnly {
		replier = Observe(logger)
	}
	opts := []Option{
		WithLogger(logger),
		WithMonitorOnly(r.MonitorOnly),
		WithMatch(r.Match),
		WithClock(r.Clock),
	}
	report := RunPass(ctx, posts, ledgers[state.Posts], ledgers[state.Comments], replier, opts...)

	report.LedgerSizes = make(map[string]int, len(ledgers))
	for name, l := range ledgers {
		report.LedgerSizes[name] = l.Len()
	}

	// Ledgers are saved even when ctx is already cancelled.
	saveCtx := context.WithoutCancel(ctx)
	var saveErrs []error
	for _, name := range state.Names {
		if err := r.Store.Save(saveCtx, name, ledgers[name]); err != nil {
			saveErrs = append(saveErrs, fmt.Errorf("%s (%s): %w", name, r.Store.Describe(name), err))
		}
	}

	logger.Info("pass finished",
		"pass", report.PassID.String(),
		"scanned", report.Scanned,
		"visited", report.Visited,
		"replied", len(report.Replied),
		"failed", len(report.Failed),
		"skipped", len(report.Skipped),
		"monitor_only", report.MonitorOnly,
	)

	if len(saveErrs) > 0 {
		return report, fmt.Errorf("%w: %w", ErrLedgerSave, errors.Join(saveErrs...))
	}
	return report, nil
}
