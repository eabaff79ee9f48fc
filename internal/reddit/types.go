package reddit

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/codex-k8s/rrbot/internal/thread"
)

const (
	kindComment = "t1"
	kindLink    = "t3"
	kindMore    = "more"
)

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type linkData struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Selftext string `json:"selftext"`
	Author   string `json:"author"`
}

type commentData struct {
	ID      string          `json:"id"`
	Body    string          `json:"body"`
	Author  string          `json:"author"`
	Replies json.RawMessage `json:"replies"`
}

type idProbe struct {
	ID string `json:"id"`
}

type commentResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
	} `json:"json"`
}

type meResponse struct {
	Name string `json:"name"`
}

// probeID extracts the id of a thing whose payload does not decode into the expected shape.
func probeID(raw json.RawMessage) string {
	var p idProbe
	if err := json.Unmarshal(raw, &p); err != nil {
		return ""
	}
	return strings.TrimSpace(p.ID)
}

func decodePost(t thing) thread.Post {
	if t.Kind != kindLink {
		return thread.Post{ID: probeID(t.Data), Invalid: "unexpected kind " + strconv.Quote(t.Kind)}
	}
	var d linkData
	if err := json.Unmarshal(t.Data, &d); err != nil {
		return thread.Post{ID: probeID(t.Data), Invalid: "undecodable post: " + err.Error()}
	}
	if strings.TrimSpace(d.ID) == "" {
		return thread.Post{Invalid: "post without id"}
	}
	return thread.Post{
		ID:     d.ID,
		Title:  d.Title,
		Body:   d.Selftext,
		Author: d.Author,
	}
}

// decodeComments converts listing children into comment trees. "more" stubs are dropped.
func decodeComments(children []thing) []*thread.Comment {
	var out []*thread.Comment
	for _, child := range children {
		if child.Kind == kindMore {
			continue
		}
		out = append(out, decodeComment(child))
	}
	return out
}

func decodeComment(t thing) *thread.Comment {
	if t.Kind != kindComment {
		return &thread.Comment{ID: probeID(t.Data), Invalid: "unexpected kind " + strconv.Quote(t.Kind)}
	}
	var d commentData
	if err := json.Unmarshal(t.Data, &d); err != nil {
		return &thread.Comment{ID: probeID(t.Data), Invalid: "undecodable comment: " + err.Error()}
	}
	if strings.TrimSpace(d.ID) == "" {
		return &thread.Comment{Invalid: "comment without id"}
	}
	c := &thread.Comment{
		ID:     d.ID,
		Body:   d.Body,
		Author: d.Author,
	}
	replies, ok := decodeReplies(d.Replies)
	if !ok {
		c.Replies = []*thread.Comment{{Invalid: "undecodable replies of " + d.ID}}
		return c
	}
	c.Replies = decodeComments(replies)
	return c
}

// decodeReplies handles the replies field, which is "" for leaf comments and a Listing otherwise.
func decodeReplies(raw json.RawMessage) ([]thing, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte(`""`)) || bytes.Equal(trimmed, []byte("null")) {
		return nil, true
	}
	var l listing
	if err := json.Unmarshal(trimmed, &l); err != nil {
		return nil, false
	}
	return l.Data.Children, true
}
