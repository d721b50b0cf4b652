// Package tagger is the boundary to the external segmentation and
// tagging collaborator. It defines the wire contract, validates every
// response against it, and falls back to deterministic longest-word
// segmentation when the collaborator is absent, slow, or in breach.
package tagger

import "fmt"

// Token is one word of a Han span as produced by the collaborator (or
// the fallback segmenter). Start/End are byte offsets into the original
// input text. Concatenating a span's token texts in order reproduces the
// span text exactly.
type Token struct {
	SpanID string `json:"span_id"`
	Index  int    `json:"index_in_span"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Text   string `json:"text"`
	UPOS   string `json:"upos"`
	XPOS   string `json:"xpos"`
	NER    string `json:"ner"`
}

// Fallback tag values for tokens produced without the collaborator.
const (
	UnknownUPOS = "X"
	UnknownXPOS = "UNK"
	UnknownNER  = "O"
)

// Request is the payload sent to the collaborator: han spans only.
type Request struct {
	SchemaVersion int        `json:"schema_version"`
	Task          string     `json:"task"`
	Tagset        Tagset     `json:"tagset"`
	Spans         []SpanText `json:"spans"`
}

// Tagset names the tag inventories the collaborator must use.
type Tagset struct {
	UPOS string `json:"upos"`
	XPOS string `json:"xpos"`
	NER  string `json:"ner"`
}

// DefaultTagset matches the inventories the validator enforces.
var DefaultTagset = Tagset{UPOS: "UDv2", XPOS: "CTB", NER: "CoNLL"}

// SpanText is one han span in a Request.
type SpanText struct {
	SpanID string `json:"span_id"`
	Text   string `json:"text"`
}

// Response is the collaborator's decoded answer.
type Response struct {
	Spans    []SpanTokens `json:"spans"`
	Warnings []string     `json:"warnings,omitempty"`
}

// SpanTokens carries the tokens for one span.
type SpanTokens struct {
	SpanID string   `json:"span_id"`
	Tokens []Tagged `json:"tokens"`
}

// Tagged is one token on the wire, without offsets.
type Tagged struct {
	Text string `json:"text"`
	UPOS string `json:"upos"`
	XPOS string `json:"xpos"`
	NER  string `json:"ner"`
}

// SchemaError marks a collaborator response that violates the contract.
// The caller must switch to the deterministic fallback and record that
// it did; a SchemaError never aborts the run.
type SchemaError struct {
	Reason string
	SpanID string
}

func (e *SchemaError) Error() string {
	if e.SpanID != "" {
		return fmt.Sprintf("tagging response invalid for span %s: %s", e.SpanID, e.Reason)
	}
	return fmt.Sprintf("tagging response invalid: %s", e.Reason)
}
