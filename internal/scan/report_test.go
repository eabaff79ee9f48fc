package scan

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/rrbot/internal/ledger"
	"github.com/codex-k8s/rrbot/internal/thread"
)

var goldenPassID = uuid.MustParse("01890a5d-ac96-774b-bcce-b302099a8057")

func goldenReport(t *testing.T, monitorOnly bool) *Report {
	t.Helper()
	posts := []thread.Post{
		{ID: "p1", Body: "what is the rr?", Comments: []*thread.Comment{
			{ID: "c1", Body: "rr?"},
			{ID: "c2", Invalid: "undecodable comment"},
		}},
		{ID: "p2", Body: "nothing here", Comments: []*thread.Comment{
			{ID: "c3", Body: "define rr"},
		}},
	}
	rec := &recorder{fail: map[string]error{"c1": errors.New("RATELIMIT: slow down")}}
	var replier Replier = rec
	if monitorOnly {
		replier = Observe(nil)
	}
	return RunPass(context.Background(), posts, ledger.New(), ledger.New(), replier,
		WithPassID(goldenPassID),
		WithClock(fixedClock(time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC), 2*time.Second)),
		WithMonitorOnly(monitorOnly),
	)
}

func TestReport_Render(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, goldenReport(t, false).Render(&buf))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "report_render", buf.Bytes())
}

func TestReport_RenderMonitorOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, goldenReport(t, true).Render(&buf))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "report_render_monitor_only", buf.Bytes())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestReport_RenderReturnsWriteError(t *testing.T) {
	err := goldenReport(t, false).Render(failingWriter{})
	require.EqualError(t, err, "disk full")
}

func TestReport_Summary(t *testing.T) {
	summary := goldenReport(t, false).Summary()
	assert.Equal(t, map[string]string{
		"pass_id":      "01890a5d-ac96-774b-bcce-b302099a8057",
		"scanned":      "2",
		"visited":      "3",
		"replied":      "2",
		"failed":       "1",
		"skipped":      "1",
		"monitor_only": "false",
		"interrupted":  "false",
	}, summary)
}
