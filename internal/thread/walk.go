package thread

// Node is one visited comment, detached from the tree shape.
type Node struct {
	ID      string
	Body    string
	Author  string
	Invalid string
	// Depth is 0 for top-level comments.
	Depth int
}

// Ref returns the reply target for the node.
func (n Node) Ref() Ref {
	return Ref{Kind: KindComment, ID: n.ID}
}

// Visit walks comments depth-first, parent before children, preserving sibling order, and
// calls fn once per node. Every node is visited regardless of what fn returned for its
// ancestors; returning false from fn stops the walk entirely.
func Visit(comments []*Comment, fn func(Node) bool) {
	type frame struct {
		c     *Comment
		depth int
	}

	stack := make([]frame, 0, len(comments))
	for i := len(comments) - 1; i >= 0; i-- {
		stack = append(stack, frame{c: comments[i]})
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.c == nil {
			continue
		}

		node := Node{
			ID:      top.c.ID,
			Body:    top.c.Body,
			Author:  top.c.Author,
			Invalid: top.c.Invalid,
			Depth:   top.depth,
		}
		if !fn(node) {
			return
		}

		for i := len(top.c.Replies) - 1; i >= 0; i-- {
			stack = append(stack, frame{c: top.c.Replies[i], depth: top.depth + 1})
		}
	}
}

// Walk returns every node of the tree in Visit order.
func Walk(comments []*Comment) []Node {
	var out []Node
	Visit(comments, func(n Node) bool {
		out = append(out, n)
		return true
	})
	return out
}

// Count returns the number of nodes in the tree.
func Count(comments []*Comment) int {
	n := 0
	Visit(comments, func(Node) bool {
		n++
		return true
	})
	return n
}

// MatchingIDs returns, in Visit order, the ids of valid nodes whose body satisfies match.
// A matching parent does not hide matching descendants.
func MatchingIDs(comments []*Comment, match func(string) bool) []string {
	var ids []string
	Visit(comments, func(n Node) bool {
		if n.Invalid == "" && match(n.Body) {
			ids = append(ids, n.ID)
		}
		return true
	})
	return ids
}
