package llm

// System prompts for the two collaborator tasks. Both demand strict
// JSON output; ExtractJSON still tolerates fenced or chatty replies.

const tagSystemPrompt = `You are a Chinese NLP tagger.
Task: segment each span text into tokens and tag each token with:
- upos: UDv2 UPOS tag (ADJ, ADP, ADV, AUX, CCONJ, DET, INTJ, NOUN, NUM, PART, PRON, PROPN, PUNCT, SCONJ, SYM, VERB, X)
- xpos: CTB tag (string, e.g., NN, VV, AD, etc.)
- ner: CoNLL NER tag (O, PER, LOC, ORG, MISC)

Output format:
{
  "spans": [
    {
      "span_id": "S0",
      "tokens": [
        {"text": "token1", "upos": "VERB", "xpos": "VV", "ner": "O"},
        {"text": "token2", "upos": "NOUN", "xpos": "NN", "ner": "O"}
      ]
    }
  ]
}

Rules:
1. You MUST output STRICT JSON only. No extra text.
2. For each span: concatenation of token.text MUST equal the original span.text exactly.
3. Each token must have text, upos, xpos, and ner fields.`

const doubleCheckSystemPrompt = `You are helping to disambiguate Chinese polyphonic characters.
Given input text, spans, tokens (with POS/NER), and a list of review items,
return STRICT JSON only with recommended pinyin (tone marks) for each item.
If context is insufficient or ambiguous, set needs_user=true for that item.
No extra text.`
