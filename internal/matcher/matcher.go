// Package matcher decides whether a piece of text is a genuine question about the RR
// (the Recommended Routine).
package matcher

import (
	"github.com/dlclark/regexp2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// The question phrase: an interrogative, an optional verb or contraction, an optional article,
// "rr" and an optional tail.
const (
	wh            = `(?:wh?at|wtf)`
	verb          = `(?:'?s| is| does)`
	interrogative = wh + verb + `?`
	subject       = ` (?:an? rr|the rr|rr)`
	tail          = `(?: mean| stand for| and where do i find it)?`
)

// pattern has four alternatives:
//   - the whole text is "rr?";
//   - the whole text is the question phrase;
//   - the question phrase inside longer text, not adjacent to a double quote and not continued
//     by another word or a clause separator; the verbless form ("what the rr") must also not
//     follow " is " or "did ";
//   - "define rr" anywhere.
//
// No match timeout is set: the answer depends on the input alone.
const pattern = `^rr\?$` +
	`|^` + interrogative + subject + tail + `[?.]?$` +
	`|(?<!")\b(?:` + wh + verb + `|(?<! is |did )` + wh + `)` + subject + tail +
	`(?![\w,;:]|[ \t]+\w)(?>[?.]?)(?!")` +
	`|\bdefine rr(?!\w)[?.]?`

// Matcher holds the compiled pattern. It is immutable after New and safe for concurrent use.
type Matcher struct {
	re *regexp2.Regexp
}

// New compiles the question pattern.
func New() *Matcher {
	re := regexp2.MustCompile(pattern, regexp2.IgnoreCase)
	return &Matcher{re: re}
}

var defaultMatcher = New()

// Match reports whether text asks about the RR, using the package default Matcher.
func Match(text string) bool {
	return defaultMatcher.Match(text)
}

// Match reports whether text contains an unquoted question about the RR.
func (m *Matcher) Match(text string) bool {
	if text == "" {
		return false
	}
	text = Normalize(text)
	quoted := quotedSpans(text)

	match, err := m.re.FindStringMatch(text)
	for match != nil && err == nil {
		if !quoted.contains(match.Index) {
			return true
		}
		match, err = m.re.FindNextMatch(match)
	}
	return false
}

// apostrophes folds the back-tick and U+2019 into the ASCII apostrophe.
var apostrophes = runes.Map(func(r rune) rune {
	switch r {
	case '`', '’':
		return '\''
	}
	return r
})

// Normalize returns text in NFC form with contraction apostrophes folded to ASCII.
func Normalize(text string) string {
	text = norm.NFC.String(text)
	out, _, err := transform.String(apostrophes, text)
	if err != nil {
		return text
	}
	return out
}

// span is a half-open rune range [start, end) covering a quoted segment, quotes included.
type span struct {
	start, end int
}

type spans []span

func (s spans) contains(pos int) bool {
	for _, sp := range s {
		if pos >= sp.start && pos < sp.end {
			return true
		}
	}
	return false
}

// quotedSpans pairs double quotes left to right. An unpaired trailing quote opens no span.
// Offsets are rune indexes, matching regexp2 match positions.
func quotedSpans(text string) spans {
	var out spans
	open := -1
	i := 0
	for _, r := range text {
		if r == '"' {
			if open < 0 {
				open = i
			} else {
				out = append(out, span{start: open, end: i + 1})
				open = -1
			}
		}
		i++
	}
	return out
}
