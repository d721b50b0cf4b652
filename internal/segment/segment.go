// Package segment splits raw input text into maximal spans of a single
// kind: Han runs that go on to tagging and reading resolution, and
// protected runs (URLs, Latin words, numbers, punctuation, whitespace)
// that are reproduced byte-for-byte in the output.
package segment

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// SpanType distinguishes Han spans from everything else.
type SpanType string

const (
	SpanHan       SpanType = "han"
	SpanProtected SpanType = "protected"
)

// Kind classifies a protected span.
type Kind string

const (
	KindURL    Kind = "url"
	KindLatin  Kind = "latin"
	KindNumber Kind = "number"
	KindSpace  Kind = "space"
	KindPunct  Kind = "punct"
	KindSymbol Kind = "symbol"
	KindOther  Kind = "other"
)

// Span is a maximal substring of one kind. Start/End are byte offsets
// into the original text, half-open. Spans are contiguous, never overlap,
// and cover the whole input in order.
type Span struct {
	ID    string   `json:"span_id"`
	Type  SpanType `json:"type"`
	Kind  Kind     `json:"kind,omitempty"`
	Start int      `json:"start"`
	End   int      `json:"end"`
	Text  string   `json:"text"`
}

// WordLike reports whether a protected span should be separated from an
// adjacent reading by a space in the output.
func (s Span) WordLike() bool {
	return s.Type == SpanProtected &&
		(s.Kind == KindURL || s.Kind == KindLatin || s.Kind == KindNumber)
}

var urlRE = regexp.MustCompile(`(?i)^https?://[^\s]+`)

// Split classifies text into spans. URLs are recognized before the
// per-rune classes so "https://..." never decomposes into latin + punct
// fragments.
func Split(text string) []Span {
	var spans []Span
	push := func(t SpanType, kind Kind, start, end int) {
		if start >= end {
			return
		}
		spans = append(spans, Span{
			ID:    fmt.Sprintf("S%d", len(spans)),
			Type:  t,
			Kind:  kind,
			Start: start,
			End:   end,
			Text:  text[start:end],
		})
	}

	i := 0
	n := len(text)
	for i < n {
		if m := urlRE.FindStringIndex(text[i:]); m != nil {
			push(SpanProtected, KindURL, i, i+m[1])
			i += m[1]
			continue
		}

		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case IsHan(r):
			j := i + size
			for j < n {
				rj, sj := utf8.DecodeRuneInString(text[j:])
				if !IsHan(rj) {
					break
				}
				j += sj
			}
			push(SpanHan, "", i, j)
			i = j

		case isSpaceRune(r):
			j := i + size
			for j < n {
				rj, sj := utf8.DecodeRuneInString(text[j:])
				if !isSpaceRune(rj) {
					break
				}
				j += sj
			}
			push(SpanProtected, KindSpace, i, j)
			i = j

		case isASCIILetter(r):
			j := i + size
			for j < n {
				rj, sj := utf8.DecodeRuneInString(text[j:])
				if !isASCIILetter(rj) && !isASCIIDigit(rj) && rj != '_' && rj != '-' {
					break
				}
				j += sj
			}
			push(SpanProtected, KindLatin, i, j)
			i = j

		case isASCIIDigit(r):
			j := i + size
			for j < n {
				rj, sj := utf8.DecodeRuneInString(text[j:])
				if !isASCIIDigit(rj) && rj != '.' && rj != '%' {
					break
				}
				j += sj
			}
			push(SpanProtected, KindNumber, i, j)
			i = j

		default:
			kind := KindOther
			if isPunctRune(r) {
				kind = KindPunct
			} else if isSymbolRune(r) {
				kind = KindSymbol
			}
			push(SpanProtected, kind, i, i+size)
			i += size
		}
	}
	return spans
}
