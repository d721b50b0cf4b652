package tagger

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// allowedUPOS is the UDv2 inventory.
var allowedUPOS = map[string]bool{
	"ADJ": true, "ADP": true, "ADV": true, "AUX": true, "CCONJ": true,
	"DET": true, "INTJ": true, "NOUN": true, "NUM": true, "PART": true,
	"PRON": true, "PROPN": true, "PUNCT": true, "SCONJ": true, "SYM": true,
	"VERB": true, "X": true,
}

// allowedNER is the CoNLL inventory.
var allowedNER = map[string]bool{
	"O": true, "PER": true, "LOC": true, "ORG": true, "MISC": true,
}

const responseSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["spans"],
	"properties": {
		"spans": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["span_id", "tokens"],
				"properties": {
					"span_id": {"type": "string", "minLength": 1},
					"tokens": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["text", "upos", "xpos", "ner"],
							"properties": {
								"text": {"type": "string", "minLength": 1},
								"upos": {"type": "string", "minLength": 1},
								"xpos": {"type": "string", "minLength": 1},
								"ner": {"type": "string", "minLength": 1}
							}
						}
					}
				}
			}
		},
		"warnings": {"type": "array", "items": {"type": "string"}}
	}
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func responseJSONSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("tagging_response.json", strings.NewReader(responseSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = c.Compile("tagging_response.json")
	})
	return compiledSchema, schemaErr
}

// DecodeResponse validates raw against the wire schema and decodes it.
// Structural violations return a *SchemaError.
func DecodeResponse(raw json.RawMessage) (*Response, error) {
	schema, err := responseJSONSchema()
	if err != nil {
		return nil, fmt.Errorf("compile response schema: %w", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, &SchemaError{Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}
	if err := schema.Validate(generic); err != nil {
		return nil, &SchemaError{Reason: err.Error()}
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &SchemaError{Reason: fmt.Sprintf("decode: %v", err)}
	}
	return &resp, nil
}

// validateSpan checks one span's tokens against the semantic contract:
// concatenated texts reproduce the span text exactly and every tag
// belongs to its inventory.
func validateSpan(span SpanText, tokens []Tagged) error {
	var sb strings.Builder
	for _, tok := range tokens {
		if tok.Text == "" {
			return &SchemaError{SpanID: span.SpanID, Reason: "empty token text"}
		}
		if !allowedUPOS[tok.UPOS] {
			return &SchemaError{SpanID: span.SpanID, Reason: fmt.Sprintf("upos %q outside tagset", tok.UPOS)}
		}
		if tok.XPOS == "" {
			return &SchemaError{SpanID: span.SpanID, Reason: "empty xpos"}
		}
		if !allowedNER[tok.NER] {
			return &SchemaError{SpanID: span.SpanID, Reason: fmt.Sprintf("ner %q outside tagset", tok.NER)}
		}
		sb.WriteString(tok.Text)
	}
	if sb.String() != span.Text {
		return &SchemaError{SpanID: span.SpanID, Reason: "token concatenation differs from span text"}
	}
	return nil
}
