// Package reddit is a small OAuth2 client for the parts of the Reddit API the bot uses:
// hot listings, comment trees and replies.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/codex-k8s/rrbot/internal/config"
	"github.com/codex-k8s/rrbot/internal/thread"
)

// maxPageSize is the largest listing page Reddit serves.
const maxPageSize = 100

// Client talks to the Reddit OAuth API on behalf of a script app.
type Client struct {
	logger    *slog.Logger
	http      *http.Client
	tokens    oauth2.TokenSource
	baseURL   string
	subreddit string
	replyText string
}

// NewClient builds a client from cfg. No request is made until the first call.
func NewClient(logger *slog.Logger, cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	rc := cfg.Reddit
	if strings.TrimSpace(rc.Subreddit) == "" {
		return nil, fmt.Errorf("subreddit is empty")
	}
	if strings.TrimSpace(rc.BaseURL) == "" {
		return nil, fmt.Errorf("reddit base url is empty")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	timeout := cfg.RequestTimeout()
	agent := &userAgentTransport{agent: rc.UserAgent, base: http.DefaultTransport}

	oauthCfg := &oauth2.Config{
		ClientID:     rc.ClientID,
		ClientSecret: rc.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  rc.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{
		Transport: agent,
		Timeout:   timeout,
	})
	tokens := oauth2.ReuseTokenSource(nil, &passwordSource{
		ctx:      tokenCtx,
		conf:     oauthCfg,
		username: rc.Username,
		password: rc.Password,
	})

	return &Client{
		logger: logger,
		http: &http.Client{
			Transport: &oauth2.Transport{Source: tokens, Base: agent},
			Timeout:   timeout,
		},
		tokens:    tokens,
		baseURL:   strings.TrimRight(rc.BaseURL, "/"),
		subreddit: rc.Subreddit,
		replyText: cfg.Scan.ReplyText,
	}, nil
}

// Authenticate fetches an access token without calling the API.
func (c *Client) Authenticate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.tokens.Token(); err != nil {
		return fmt.Errorf("reddit token: %w", err)
	}
	return nil
}

// Me returns the name of the authenticated account.
func (c *Client) Me(ctx context.Context) (string, error) {
	var me meResponse
	if err := c.getJSON(ctx, "/api/v1/me", nil, &me); err != nil {
		return "", err
	}
	return me.Name, nil
}

// FetchPosts returns up to limit hot posts of the subreddit, each with its comment tree.
func (c *Client) FetchPosts(ctx context.Context, limit int) ([]thread.Post, error) {
	posts, err := c.FetchHot(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		if posts[i].ID == "" {
			continue
		}
		comments, err := c.FetchComments(ctx, posts[i].ID)
		if err != nil {
			return nil, err
		}
		posts[i].Comments = comments
	}
	return posts, nil
}

// FetchHot returns up to limit hot posts without their comments.
func (c *Client) FetchHot(ctx context.Context, limit int) ([]thread.Post, error) {
	if limit <= 0 {
		return nil, nil
	}
	path := "/r/" + url.PathEscape(c.subreddit) + "/hot"

	var out []thread.Post
	after := ""
	for len(out) < limit {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(min(limit-len(out), maxPageSize)))
		query.Set("raw_json", "1")
		if after != "" {
			query.Set("after", after)
		}

		var page listing
		if err := c.getJSON(ctx, path, query, &page); err != nil {
			return nil, fmt.Errorf("fetch hot posts: %w", err)
		}
		for _, child := range page.Data.Children {
			if len(out) == limit {
				break
			}
			out = append(out, decodePost(child))
		}
		after = page.Data.After
		if after == "" || len(page.Data.Children) == 0 {
			break
		}
	}
	c.logger.Debug("fetched hot posts", "subreddit", c.subreddit, "count", len(out))
	return out, nil
}

// FetchComments returns the comment tree of a post. Collapsed "more" stubs are not expanded.
func (c *Client) FetchComments(ctx context.Context, postID string) ([]*thread.Comment, error) {
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return nil, fmt.Errorf("post id is empty")
	}
	query := url.Values{}
	query.Set("raw_json", "1")

	var pages []listing
	if err := c.getJSON(ctx, "/comments/"+url.PathEscape(postID), query, &pages); err != nil {
		return nil, fmt.Errorf("fetch comments of %s: %w", postID, err)
	}
	if len(pages) < 2 {
		return nil, fmt.Errorf("fetch comments of %s: expected 2 listings, got %d", postID, len(pages))
	}
	comments := decodeComments(pages[1].Data.Children)
	c.logger.Debug("fetched comment tree", "post", postID, "comments", thread.Count(comments))
	return comments, nil
}

// Reply posts the configured reply text under ref.
func (c *Client) Reply(ctx context.Context, ref thread.Ref) error {
	if strings.TrimSpace(ref.ID) == "" {
		return fmt.Errorf("reply target id is empty")
	}
	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("thing_id", ref.Fullname())
	form.Set("text", c.replyText)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/comment", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp commentResponse
	if err := c.do(req, &resp); err != nil {
		return fmt.Errorf("reply to %s: %w", ref, err)
	}
	if len(resp.JSON.Errors) > 0 {
		return fmt.Errorf("reply to %s: %w", ref, &APIError{Status: http.StatusOK, Errors: formatErrors(resp.JSON.Errors)})
	}
	c.logger.Debug("reply posted", "target", ref.Fullname())
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if msg := strings.TrimSpace(string(body)); msg != "" {
			if len(msg) > 200 {
				msg = msg[:200]
			}
			apiErr.Errors = []string{msg}
		}
		return apiErr
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(r)
}

// passwordSource performs the password grant each time a fresh token is needed.
type passwordSource struct {
	ctx      context.Context
	conf     *oauth2.Config
	username string
	password string
}

func (s *passwordSource) Token() (*oauth2.Token, error) {
	return s.conf.PasswordCredentialsToken(s.ctx, s.username, s.password)
}
