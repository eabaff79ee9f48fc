// Package scan runs one pass over a batch of posts: it finds matching posts and comments,
// replies to the ones not yet in the ledgers and records what happened.
package scan

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codex-k8s/rrbot/internal/ledger"
	"github.com/codex-k8s/rrbot/internal/matcher"
	"github.com/codex-k8s/rrbot/internal/thread"
)

// Replier posts the bot reply under a post or comment.
type Replier interface {
	Reply(ctx context.Context, ref thread.Ref) error
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(ctx context.Context, ref thread.Ref) error

// Reply calls f.
func (f ReplierFunc) Reply(ctx context.Context, ref thread.Ref) error {
	return f(ctx, ref)
}

// Observe returns a Replier that only logs the reply it would have posted.
func Observe(logger *slog.Logger) Replier {
	if logger == nil {
		logger = discardLogger()
	}
	return ReplierFunc(func(_ context.Context, ref thread.Ref) error {
		logger.Info("monitor-only: reply suppressed", "target", ref.String())
		return nil
	})
}

// Feed supplies the posts of a pass, comment trees included.
type Feed interface {
	FetchPosts(ctx context.Context, limit int) ([]thread.Post, error)
}

// Option customizes RunPass.
type Option func(*passOptions)

type passOptions struct {
	match       func(string) bool
	logger      *slog.Logger
	now         func() time.Time
	passID      uuid.UUID
	monitorOnly bool
}

// WithMatch replaces the default phrase matcher.
func WithMatch(match func(string) bool) Option {
	return func(o *passOptions) {
		if match != nil {
			o.match = match
		}
	}
}

// WithLogger sets the logger used for per-item events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *passOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the time source for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *passOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithPassID fixes the pass id instead of generating one.
func WithPassID(id uuid.UUID) Option {
	return func(o *passOptions) { o.passID = id }
}

// WithMonitorOnly flags the report as monitor-only. It does not change ledger updates: a
// successful no-op reply is recorded like a real one.
func WithMonitorOnly(on bool) Option {
	return func(o *passOptions) { o.monitorOnly = on }
}

// RunPass visits posts in order and, for each post followed by its comments depth first,
// replies to every valid item that matches and is absent from its ledger. A successful reply
// inserts the id; a failed one is recorded and left for the next pass. The pass stops early
// when ctx is cancelled.
func RunPass(ctx context.Context, posts []thread.Post, postLedger, commentLedger *ledger.Ledger, replier Replier, opts ...Option) *Report {
	o := passOptions{
		match:  matcher.Match,
		logger: discardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.passID == uuid.Nil {
		o.passID = newPassID()
	}
	if postLedger == nil {
		postLedger = ledger.New()
	}
	if commentLedger == nil {
		commentLedger = ledger.New()
	}

	p := &pass{
		opts:    o,
		replier: replier,
		report: &Report{
			PassID:      o.passID,
			StartedAt:   o.now().UTC(),
			MonitorOnly: o.monitorOnly,
		},
	}
	logger := o.logger.With("pass", o.passID.String())

	for _, post := range posts {
		if ctx.Err() != nil {
			p.report.Interrupted = true
			break
		}
		p.report.Scanned++
		if post.Invalid != "" {
			p.skip(logger, post.Ref(), post.Invalid)
		} else {
			p.consider(ctx, logger, post.Ref(), post.Body, postLedger)
		}

		thread.Visit(post.Comments, func(n thread.Node) bool {
			if ctx.Err() != nil {
				p.report.Interrupted = true
				return false
			}
			p.report.Visited++
			if n.Invalid != "" {
				p.skip(logger, n.Ref(), n.Invalid)
				return true
			}
			p.consider(ctx, logger, n.Ref(), n.Body, commentLedger)
			return true
		})
		if p.report.Interrupted {
			break
		}
	}

	p.report.FinishedAt = o.now().UTC()
	return p.report
}

type pass struct {
	opts    passOptions
	replier Replier
	report  *Report
}

func (p *pass) consider(ctx context.Context, logger *slog.Logger, ref thread.Ref, body string, l *ledger.Ledger) {
	if l.Contains(ref.ID) {
		return
	}
	if !p.opts.match(body) {
		return
	}
	logger.Info("matched", "target", ref.String())
	if p.replier == nil {
		p.fail(logger, ref, errNoReplier)
		return
	}
	if err := p.replier.Reply(ctx, ref); err != nil {
		p.fail(logger, ref, err)
		return
	}
	l.Insert(ref.ID)
	p.report.Replied = append(p.report.Replied, ref)
	logger.Info("replied", "target", ref.String(), "monitor_only", p.opts.monitorOnly)
}

func (p *pass) fail(logger *slog.Logger, ref thread.Ref, err error) {
	p.report.Failed = append(p.report.Failed, Failure{Ref: ref, Err: err})
	logger.Warn("reply failed, will retry next pass", "target", ref.String(), "error", err)
}

func (p *pass) skip(logger *slog.Logger, ref thread.Ref, reason string) {
	p.report.Skipped = append(p.report.Skipped, Skip{Ref: ref, Reason: reason})
	logger.Warn("skipping malformed item", "target", ref.String(), "reason", reason)
}

func newPassID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
