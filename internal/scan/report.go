package scan

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/codex-k8s/rrbot/internal/thread"
)

// Item outcomes, as used by Count.
const (
	OutcomeReplied = "replied"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

var errNoReplier = errors.New("no replier configured")

// Failure is a reply attempt that returned an error.
type Failure struct {
	Ref thread.Ref
	Err error
}

// Skip is an item left out of the pass because it could not be decoded.
type Skip struct {
	Ref    thread.Ref
	Reason string
}

// Report describes the outcome of one pass.
type Report struct {
	// PassID identifies the pass in logs and exported metrics.
	PassID uuid.UUID
	// StartedAt and FinishedAt bound the pass, in UTC.
	StartedAt  time.Time
	FinishedAt time.Time
	// Scanned counts posts, Visited counts comments.
	Scanned int
	Visited int
	// Replied lists successful replies in visit order.
	Replied []thread.Ref
	Failed  []Failure
	Skipped []Skip
	// MonitorOnly is set when replies were observed instead of posted.
	MonitorOnly bool
	// Interrupted is set when the context was cancelled before every item was visited.
	Interrupted bool
	// LedgerSizes holds the entry count of each ledger after the pass, when known.
	LedgerSizes map[string]int
}

// Count returns the number of replied, failed or skipped items of kind.
func (r *Report) Count(kind thread.Kind, outcome string) int {
	n := 0
	switch outcome {
	case OutcomeReplied:
		for _, ref := range r.Replied {
			if ref.Kind == kind {
				n++
			}
		}
	case OutcomeFailed:
		for _, f := range r.Failed {
			if f.Ref.Kind == kind {
				n++
			}
		}
	case OutcomeSkipped:
		for _, s := range r.Skipped {
			if s.Ref.Kind == kind {
				n++
			}
		}
	}
	return n
}

// Duration is the wall time of the pass.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Render writes a human readable summary of r.
func (r *Report) Render(w io.Writer) error {
	ew := &errWriter{w: w}
	mode := "live"
	if r.MonitorOnly {
		mode = "monitor-only"
	}
	ew.printf("pass %s (%s)\n", r.PassID, mode)
	ew.printf("started:  %s\n", r.StartedAt.Format(time.RFC3339))
	ew.printf("finished: %s (%s)\n", r.FinishedAt.Format(time.RFC3339), r.Duration())
	ew.printf("posts scanned: %d\n", r.Scanned)
	ew.printf("comments visited: %d\n", r.Visited)
	if r.Interrupted {
		ew.printf("interrupted: yes\n")
	}
	ew.printf("replied: %d\n", len(r.Replied))
	for _, ref := range r.Replied {
		ew.printf("  %s\n", ref)
	}
	ew.printf("failed: %d\n", len(r.Failed))
	for _, f := range r.Failed {
		ew.printf("  %s: %v\n", f.Ref, f.Err)
	}
	ew.printf("skipped: %d\n", len(r.Skipped))
	for _, s := range r.Skipped {
		ew.printf("  %s: %s\n", s.Ref, s.Reason)
	}
	return ew.err
}

// Summary returns the pass counters as strings, keyed for CI step outputs.
func (r *Report) Summary() map[string]string {
	return map[string]string{
		"pass_id":      r.PassID.String(),
		"scanned":      strconv.Itoa(r.Scanned),
		"visited":      strconv.Itoa(r.Visited),
		"replied":      strconv.Itoa(len(r.Replied)),
		"failed":       strconv.Itoa(len(r.Failed)),
		"skipped":      strconv.Itoa(len(r.Skipped)),
		"monitor_only": strconv.FormatBool(r.MonitorOnly),
		"interrupted":  strconv.FormatBool(r.Interrupted),
	}
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
