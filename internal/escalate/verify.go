// Package escalate decides which resolutions cannot be trusted as they
// stand, routes them through the external double-check collaborator and
// (when enabled) an interactive chooser, and applies a deterministic
// fallback so a run always completes.
package escalate

import (
	"context"
	"encoding/json"
	"fmt"
)

// Item is one escalated character occurrence with enough context for a
// reviewer, human or not, to decide.
type Item struct {
	SpanID      string   `json:"span_id"`
	TokenIndex  int      `json:"token_index"`
	TokenText   string   `json:"token_text"`
	CharOffset  int      `json:"char_offset_in_token"`
	Char        string   `json:"char"`
	Candidates  []string `json:"candidates"`
	Current     string   `json:"current"`
	Confidence  float64  `json:"confidence"`
	Conflict    bool     `json:"conflict"`
	ContextText string   `json:"context"`
}

// VerifyRequest is the payload sent to the double-check collaborator.
type VerifyRequest struct {
	SchemaVersion int           `json:"schema_version"`
	Task          string        `json:"task"`
	Text          string        `json:"text"`
	Spans         []SpanContext `json:"spans"`
	Items         []Item        `json:"items"`
}

// SpanContext carries one han span with its tagged tokens.
type SpanContext struct {
	SpanID string      `json:"span_id"`
	Text   string      `json:"text"`
	Tokens []TokenTags `json:"tokens"`
}

// TokenTags is a token's text and tags, without offsets.
type TokenTags struct {
	Text string `json:"text"`
	UPOS string `json:"upos"`
	XPOS string `json:"xpos"`
	NER  string `json:"ner"`
}

// Verdict is the collaborator's decoded answer.
type Verdict struct {
	Verdict string        `json:"verdict"` // "ok" or "needs_user"
	Items   []VerdictItem `json:"items"`
}

// VerdictItem answers one escalated item, addressed 0-based.
type VerdictItem struct {
	SpanID      string   `json:"span_id"`
	TokenIndex  int      `json:"token_index"`
	CharOffset  int      `json:"char_offset_in_token"`
	Char        string   `json:"char"`
	Candidates  []string `json:"candidates,omitempty"`
	Recommended string   `json:"recommended"`
	Reason      string   `json:"reason,omitempty"`
	NeedsUser   bool     `json:"needs_user"`
}

// Verifier is the external double-check collaborator.
type Verifier interface {
	DoubleCheck(ctx context.Context, req VerifyRequest) (json.RawMessage, error)
}

// Chooser suspends for a user decision on one item. ok=false skips the
// item, leaving its tentative reading in place.
type Chooser interface {
	Choose(item Item) (choice string, ok bool)
}

// DecodeVerdict decodes a collaborator response, rejecting anything
// that is not a JSON object with an items list.
func DecodeVerdict(raw json.RawMessage) (*Verdict, error) {
	var v Verdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("double-check response: %w", err)
	}
	if v.Items == nil {
		return nil, fmt.Errorf("double-check response missing items")
	}
	return &v, nil
}
