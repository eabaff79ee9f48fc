// Package thread models feed posts and their comment trees and flattens the trees for matching.
package thread

import "fmt"

// Kind distinguishes the two id spaces a reply can target.
type Kind string

const (
	// KindPost identifies a top-level post.
	KindPost Kind = "post"
	// KindComment identifies a comment anywhere in a post's tree.
	KindComment Kind = "comment"
)

// Ref identifies a reply target.
type Ref struct {
	Kind Kind
	ID   string
}

// Fullname returns the Reddit fullname of the target (t3_ for posts, t1_ for comments).
func (r Ref) Fullname() string {
	if r.Kind == KindPost {
		return "t3_" + r.ID
	}
	return "t1_" + r.ID
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%s", r.Kind, r.ID)
}

// Post is an immutable snapshot of a feed post with its materialized comment tree.
type Post struct {
	// ID is the feed-unique post identifier.
	ID string
	// Title is display-only.
	Title string
	// Body is the post text; may be empty for link posts.
	Body string
	// Author is the account that submitted the post.
	Author string
	// Invalid is a non-empty reason when the feed item could not be decoded.
	Invalid string
	// Comments are the top-level comments in feed order.
	Comments []*Comment
}

// Ref returns the reply target for the post.
func (p Post) Ref() Ref {
	return Ref{Kind: KindPost, ID: p.ID}
}

// Comment is a node in a post's reply tree.
type Comment struct {
	// ID is the feed-unique comment identifier.
	ID string
	// Body is the comment text.
	Body string
	// Author is the account that wrote the comment.
	Author string
	// Invalid is a non-empty reason when the feed item could not be decoded.
	Invalid string
	// Replies are the direct children in feed order.
	Replies []*Comment
}

// Ref returns the reply target for the comment.
func (c *Comment) Ref() Ref {
	return Ref{Kind: KindComment, ID: c.ID}
}
