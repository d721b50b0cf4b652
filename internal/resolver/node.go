// Package resolver assigns one reading to every Han character
// occurrence. It runs the rule scan over a frozen snapshot, applies the
// word and character dictionaries, and falls through to the statistical
// disambiguator, tracking state, provenance, and conflicts per
// character.
package resolver

// Source tells how a character's reading was decided.
type Source string

const (
	SourceWordDict       Source = "word_dict"
	SourceCharDictSingle Source = "char_dict_single"
	SourceStatistical    Source = "statistical"
	SourceBaseRule       Source = "base_rule"
	SourceOverride       Source = "override"
	SourceDoubleCheck    Source = "llm_double_check"
	SourceUser           Source = "user"
	SourceFallback       Source = "fallback"
)

// State is a CharNode's position in the resolution lifecycle.
type State string

const (
	StateUnresolved State = "unresolved"
	StateResolved   State = "resolved"
)

// CharNode is one Han character occurrence inside a token, addressed by
// (span, token index, rune offset within the token). Nodes live for one
// run and are discarded afterwards.
type CharNode struct {
	SpanID     string `json:"span_id"`
	TokenIndex int    `json:"token_index"`
	Offset     int    `json:"char_offset_in_token"` // rune offset
	Char       string `json:"char"`

	Candidates []string `json:"candidates"`

	State       State    `json:"-"`
	Reading     string   `json:"chosen"`
	Source      Source   `json:"resolved_by"`
	Confidence  float64  `json:"confidence"`
	RuleID      string   `json:"rule_id,omitempty"`
	Provenance  []string `json:"provenance,omitempty"`
	Conflict    bool     `json:"conflict"`
	NeedsReview bool     `json:"needs_review"`
	Notes       []string `json:"notes,omitempty"`
}

// resolve moves an unresolved node to resolved.
func (n *CharNode) resolve(reading string, src Source, confidence float64) {
	n.State = StateResolved
	n.Reading = reading
	n.Source = src
	n.Confidence = confidence
}

func (n *CharNode) note(s string) {
	n.Notes = append(n.Notes, s)
}

func (n *CharNode) trace(s string) {
	n.Provenance = append(n.Provenance, s)
}
