// Package rules holds the disambiguation rule model: the predicate
// matcher, the frozen priority-sorted snapshot a run scans, the override
// store on disk, and the generator that turns a confirmed user decision
// into a new minimally-scoped rule.
package rules

import (
	"encoding/json"
	"fmt"
)

// Origin tells a resolved decision apart by which layer its rule came
// from. Override rules always outrank base rules.
type Origin string

const (
	OriginBase     Origin = "base"
	OriginOverride Origin = "override"
)

// OccurrenceAll targets every occurrence of the character in a token.
const OccurrenceAll = 0

// Occurrence is the 1-based position of the target character within its
// token, or OccurrenceAll. On the wire it is an integer or the literal
// string "all". Counting is per token: it resets at each token boundary.
type Occurrence int

func (o Occurrence) MarshalJSON() ([]byte, error) {
	if o == OccurrenceAll {
		return json.Marshal("all")
	}
	return json.Marshal(int(o))
}

func (o *Occurrence) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "all" {
			return fmt.Errorf("occurrence string must be \"all\", got %q", s)
		}
		*o = OccurrenceAll
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("occurrence must be a positive integer or \"all\"")
	}
	if n < 1 {
		return fmt.Errorf("occurrence must be >= 1, got %d", n)
	}
	*o = Occurrence(n)
	return nil
}

// MatchPart constrains one token position. All present keys AND
// together; list-valued keys OR within the list. For prev/next parts,
// AllowMissing makes the block match when the neighbor token does not
// exist; by default a missing neighbor fails the block.
type MatchPart struct {
	Text         string   `json:"text,omitempty"`
	TextIn       []string `json:"text_in,omitempty"`
	Regex        string   `json:"regex,omitempty"`
	UPOSIn       []string `json:"upos_in,omitempty"`
	XPOSIn       []string `json:"xpos_in,omitempty"`
	NERIn        []string `json:"ner_in,omitempty"`
	Contains     []string `json:"contains,omitempty"`
	AllowMissing bool     `json:"allow_missing,omitempty"`
}

// Match is a rule's predicate tree: self/prev/next blocks combined with
// AND. A nil block is unconstrained.
type Match struct {
	Self *MatchPart `json:"self,omitempty"`
	Prev *MatchPart `json:"prev,omitempty"`
	Next *MatchPart `json:"next,omitempty"`
}

// Target names the character a rule resolves and which occurrence of it
// within a matching token.
type Target struct {
	Char       string     `json:"char"`
	Occurrence Occurrence `json:"occurrence"`
}

// Rule is immutable once loaded. Choose is normalized at load time so
// reading comparisons never see unnormalized spellings.
type Rule struct {
	ID          string         `json:"id"`
	Priority    int            `json:"priority"`
	Description string         `json:"description,omitempty"`
	Match       Match          `json:"match"`
	Target      Target         `json:"target"`
	Choose      string         `json:"choose"`
	Confidence  float64        `json:"confidence,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`

	// Origin is assigned when the rule enters a snapshot, not stored.
	Origin Origin `json:"-"`
}

// Valid reports whether the rule carries the minimum it needs to fire.
func (r *Rule) Valid() bool {
	return r.ID != "" && r.Target.Char != "" && r.Choose != ""
}
