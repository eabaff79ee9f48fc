package reddit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/rrbot/internal/config"
	"github.com/codex-k8s/rrbot/internal/thread"
)

type fakeReddit struct {
	t          *testing.T
	tokenCalls atomic.Int32

	mu        sync.Mutex
	replyBody string
	replies   []map[string]string
}

func (f *fakeReddit) sent() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.replies...)
}

func (f *fakeReddit) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client_id" || pass != "client_secret" {
			http.Error(w, "bad client", http.StatusUnauthorized)
			return
		}
		require.NoError(f.t, r.ParseForm())
		if r.PostForm.Get("grant_type") != "password" || r.PostForm.Get("username") != "bot" || r.PostForm.Get("password") != "hunter2" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"error": "invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "tok", "token_type": "bearer", "expires_in": 3600}`))
	})
	api := http.NewServeMux()
	api.HandleFunc("/r/bodyweightfitness/hot", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "2", r.URL.Query().Get("limit"))
		serveFile(f.t, w, "hot.json")
	})
	api.HandleFunc("/comments/p1", func(w http.ResponseWriter, r *http.Request) {
		serveFile(f.t, w, "comments_p1.json")
	})
	api.HandleFunc("/comments/p2", func(w http.ResponseWriter, r *http.Request) {
		serveFile(f.t, w, "comments_p2.json")
	})
	api.HandleFunc("/api/v1/me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name": "bot"}`))
	})
	api.HandleFunc("/api/comment", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(f.t, r.ParseForm())
		f.mu.Lock()
		f.replies = append(f.replies, map[string]string{
			"thing_id": r.PostForm.Get("thing_id"),
			"text":     r.PostForm.Get("text"),
			"api_type": r.PostForm.Get("api_type"),
		})
		body := f.replyBody
		f.mu.Unlock()
		if body == "" {
			body = `{"json": {"errors": [], "data": {"things": []}}}`
		}
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "rrbot-test/1.0", r.Header.Get("User-Agent"))
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		api.ServeHTTP(w, r)
	})
	return mux
}

func serveFile(t *testing.T, w http.ResponseWriter, name string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func newTestClient(t *testing.T, password string) (*Client, *fakeReddit) {
	t.Helper()
	fake := &fakeReddit{t: t}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Reddit.ClientID = "client_id"
	cfg.Reddit.ClientSecret = "client_secret"
	cfg.Reddit.Username = "bot"
	cfg.Reddit.Password = password
	cfg.Reddit.Subreddit = "bodyweightfitness"
	cfg.Reddit.UserAgent = "rrbot-test/1.0"
	cfg.Reddit.BaseURL = srv.URL
	cfg.Reddit.TokenURL = srv.URL + "/api/v1/access_token"

	client, err := NewClient(nil, cfg)
	require.NoError(t, err)
	return client, fake
}

func TestFetchPosts_DecodesTrees(t *testing.T) {
	client, fake := newTestClient(t, "hunter2")

	posts, err := client.FetchPosts(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	p1 := posts[0]
	assert.Equal(t, "p1", p1.ID)
	assert.Equal(t, "What is the RR?", p1.Body)
	assert.Equal(t, "alice", p1.Author)
	assert.Empty(t, p1.Invalid)

	var got []string
	thread.Visit(p1.Comments, func(n thread.Node) bool {
		state := "ok"
		if n.Invalid != "" {
			state = "invalid"
		}
		got = append(got, n.ID+":"+state)
		return true
	})
	assert.Equal(t, []string{"cj0z5z:ok", "cj0z6a:ok", "cj0z7x:invalid", "cj0z8q:ok"}, got)
	assert.Equal(t, []string{"cj0z6a"}, thread.MatchingIDs(p1.Comments, func(s string) bool { return s == "but what is the Rr?" }))

	p2 := posts[1]
	assert.Equal(t, "p2", p2.ID)
	assert.Contains(t, p2.Invalid, "undecodable post")
	assert.Empty(t, p2.Comments)

	assert.Equal(t, int32(1), fake.tokenCalls.Load(), "token is reused across requests")
}

func TestFetchHot_ZeroLimit(t *testing.T) {
	client, fake := newTestClient(t, "hunter2")
	posts, err := client.FetchHot(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Zero(t, fake.tokenCalls.Load())
}

func TestReply_PostsForm(t *testing.T) {
	client, fake := newTestClient(t, "hunter2")

	require.NoError(t, client.Reply(context.Background(), thread.Ref{Kind: thread.KindComment, ID: "cj0z6a"}))
	sent := fake.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "t1_cj0z6a", sent[0]["thing_id"])
	assert.Equal(t, "json", sent[0]["api_type"])
	assert.Equal(t, config.DefaultReplyText, sent[0]["text"])
}

func TestReply_APIErrors(t *testing.T) {
	client, fake := newTestClient(t, "hunter2")
	fake.mu.Lock()
	fake.replyBody = `{"json": {"errors": [["RATELIMIT", "you are doing that too much. try again in 9 minutes.", "ratelimit"]]}}`
	fake.mu.Unlock()

	err := client.Reply(context.Background(), thread.Ref{Kind: thread.KindPost, ID: "p1"})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.Contains(t, err.Error(), "RATELIMIT: you are doing that too much")
	require.Len(t, fake.sent(), 1)
	assert.Equal(t, "t3_p1", fake.sent()[0]["thing_id"])
}

func TestReply_EmptyID(t *testing.T) {
	client, fake := newTestClient(t, "hunter2")
	require.Error(t, client.Reply(context.Background(), thread.Ref{Kind: thread.KindPost}))
	assert.Empty(t, fake.sent())
}

func TestAuthenticate_BadPassword(t *testing.T) {
	client, _ := newTestClient(t, "wrong")
	require.Error(t, client.Authenticate(context.Background()))

	_, err := client.FetchHot(context.Background(), 2)
	require.Error(t, err)
}

func TestMe(t *testing.T) {
	client, _ := newTestClient(t, "hunter2")
	require.NoError(t, client.Authenticate(context.Background()))
	name, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bot", name)
}

func TestAPIError(t *testing.T) {
	err := &APIError{Status: http.StatusTooManyRequests}
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, "reddit api error: status 429", err.Error())
	assert.False(t, IsRateLimited(assert.AnError))
	assert.Equal(t, []string{"BAD_TEXT: empty", "NO_MESSAGE"}, formatErrors([][]any{{"BAD_TEXT", "empty", "text"}, {"NO_MESSAGE", nil}, {}}))
}

func TestNewClient_RequiresSubreddit(t *testing.T) {
	cfg := config.Default()
	_, err := NewClient(nil, cfg)
	require.Error(t, err)
}
