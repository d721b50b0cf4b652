package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var codeFenceRE = regexp.MustCompile("(?i)^```(?:json)?\\s*|\\s*```$")

// ExtractJSON pulls a JSON object out of a model response that should
// have been strict JSON. Code fences are stripped first; if the whole
// text still does not parse, the outermost {...} is tried.
func ExtractJSON(text string) (json.RawMessage, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return nil, fmt.Errorf("empty model response")
	}
	if strings.Contains(t, "```") {
		t = strings.TrimSpace(codeFenceRE.ReplaceAllString(t, ""))
	}

	if json.Valid([]byte(t)) {
		return json.RawMessage(t), nil
	}

	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start != -1 && end > start {
		snippet := t[start : end+1]
		if json.Valid([]byte(snippet)) {
			return json.RawMessage(snippet), nil
		}
		return nil, fmt.Errorf("model response contains invalid JSON")
	}
	return nil, fmt.Errorf("no JSON object in model response")
}
