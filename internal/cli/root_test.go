package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/rrbot/internal/config"
	"github.com/codex-k8s/rrbot/internal/logging"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	opts := &Options{ConfigPath: config.DefaultPath, logErr: io.Discard}
	cmd := newRootCommand(opts, logging.NewLogger(io.Discard, logging.LevelInfo))

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeTestConfig(t *testing.T, dir, baseURL string) string {
	t.Helper()
	body := fmt.Sprintf(`reddit:
  clientID: client_id
  clientSecret: client_secret
  username: bot
  password: hunter2
  subreddit: r/bodyweightfitness
  baseURL: %q
  tokenURL: %q
state:
  dir: state
`, baseURL, baseURL+"/api/v1/access_token")
	path := filepath.Join(dir, "rrbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestMatchCommand_Args(t *testing.T) {
	out, err := runCLI(t, "", "match", "what is the rr?", `"what is the rr?"`)
	require.NoError(t, err)
	assert.Equal(t, "match\twhat is the rr?\nno match\t\"what is the rr?\"\n", out)
}

func TestMatchCommand_Stdin(t *testing.T) {
	out, err := runCLI(t, "define rr\n\nthe rr is great\n", "match")
	require.NoError(t, err)
	assert.Equal(t, "match\tdefine rr\nno match\tthe rr is great\n", out)
}

func TestMatchCommand_QuietFailsWithoutMatch(t *testing.T) {
	out, err := runCLI(t, "", "match", "-q", "hello")
	require.Error(t, err)
	assert.Empty(t, out)

	_, err = runCLI(t, "", "match", "-q", "wtf is rr")
	require.NoError(t, err)
}

func TestLedgerCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "http://127.0.0.1:1")

	out, err := runCLI(t, "", "ledger", "add", "comments", "c2", "c1", "c2", "-c", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "added 2 of 3 ids to comments\n", out)

	out, err = runCLI(t, "", "ledger", "list", "comments", "-c", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "c1\nc2\n", out)

	data, err := os.ReadFile(filepath.Join(dir, "state", "comments.db"))
	require.NoError(t, err)
	assert.Equal(t, "c1\nc2\n", string(data))

	_, err = runCLI(t, "", "ledger", "list", "inbox", "-c", cfgPath)
	require.Error(t, err)
}

func TestDoctorOffline(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "http://127.0.0.1:1")

	_, err := runCLI(t, "", "doctor", "--offline", "-c", cfgPath)
	require.NoError(t, err)

	_, err = runCLI(t, "", "doctor", "--offline", "-c", filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

type fakeAPI struct {
	replies atomic.Int32
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token": "tok", "token_type": "bearer", "expires_in": 3600}`)
	})
	mux.HandleFunc("/api/v1/me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"name": "bot"}`)
	})
	mux.HandleFunc("/r/bodyweightfitness/hot", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"kind": "Listing", "data": {"children": [
			{"kind": "t3", "data": {"id": "p1", "title": "Help", "selftext": "define rr?", "author": "alice"}}
		]}}`)
	})
	mux.HandleFunc("/comments/p1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[
			{"kind": "Listing", "data": {"children": []}},
			{"kind": "Listing", "data": {"children": [
				{"kind": "t1", "data": {"id": "c1", "body": "What's the RR?", "author": "bob", "replies": ""}},
				{"kind": "t1", "data": {"id": "c2", "body": "He said \"what is the rr?\" twice", "author": "carol", "replies": ""}}
			]}}
		]`)
	})
	mux.HandleFunc("/api/comment", func(w http.ResponseWriter, r *http.Request) {
		f.replies.Add(1)
		_, _ = io.WriteString(w, `{"json": {"errors": []}}`)
	})
	return mux
}

func TestScanCommand_EndToEnd(t *testing.T) {
	fake := &fakeAPI{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, srv.URL)
	outputs := filepath.Join(dir, "github_output")
	t.Setenv("GITHUB_OUTPUT", outputs)
	t.Setenv("GITHUB_STEP_SUMMARY", "")

	out, err := runCLI(t, "", "scan", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "posts scanned: 1\n")
	assert.Contains(t, out, "comments visited: 2\n")
	assert.Contains(t, out, "replied: 2\n  post/p1\n  comment/c1\n")
	assert.Equal(t, int32(2), fake.replies.Load())

	posts, err := os.ReadFile(filepath.Join(dir, "state", "posts.db"))
	require.NoError(t, err)
	assert.Equal(t, "p1\n", string(posts))
	comments, err := os.ReadFile(filepath.Join(dir, "state", "comments.db"))
	require.NoError(t, err)
	assert.Equal(t, "c1\n", string(comments))

	gh, err := os.ReadFile(outputs)
	require.NoError(t, err)
	assert.Contains(t, string(gh), "replied=2\n")

	out, err = runCLI(t, "", "scan", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "replied: 0\n")
	assert.Equal(t, int32(2), fake.replies.Load())
}

func TestScanCommand_MonitorOnly(t *testing.T) {
	fake := &fakeAPI{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, srv.URL)
	t.Setenv("GITHUB_OUTPUT", "")
	t.Setenv("GITHUB_STEP_SUMMARY", "")

	out, err := runCLI(t, "", "scan", "--monitor-only", "--report", "text", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "(monitor-only)")
	assert.Contains(t, out, "replied: 2\n")
	assert.Zero(t, fake.replies.Load())

	posts, err := os.ReadFile(filepath.Join(dir, "state", "posts.db"))
	require.NoError(t, err)
	assert.Equal(t, "p1\n", string(posts))

	out, err = runCLI(t, "", "scan", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "replied: 0\n")
	assert.Zero(t, fake.replies.Load())
}

func TestScanCommand_RejectsBadFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "http://127.0.0.1:1")

	_, err := runCLI(t, "", "scan", "--report", "xml", "-c", cfgPath)
	require.Error(t, err)

	_, err = runCLI(t, "", "scan", "--hot-take", "0", "-c", cfgPath)
	require.Error(t, err)
}
