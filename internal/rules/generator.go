package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
	"unicode/utf8"

	"hanpin/internal/pinyin"
	"hanpin/internal/tagger"
)

// overridePriorityFloor keeps every generated rule strictly above any
// plausible base set even when the base file is empty.
const overridePriorityFloor = 100000

// LadderPolicy tunes how narrowly a generated rule is scoped. The
// thresholds are heuristics; real corpora may need different values, so
// they are named fields rather than constants.
type LadderPolicy struct {
	// ExactTextMinLen is the token length in runes at or above which an
	// exact self-text match alone is considered precise enough. Shorter
	// tokens (typically single-character function words) additionally
	// bind the neighboring tokens to avoid over-generalizing from one
	// occurrence.
	ExactTextMinLen int
}

// DefaultLadder is the policy used when none is configured.
var DefaultLadder = LadderPolicy{ExactTextMinLen: 2}

// Observation is the confirmed user decision an override rule is
// synthesized from: the token in its context and the chosen reading.
type Observation struct {
	Token       tagger.Token
	Prev        *tagger.Token
	Next        *tagger.Token
	Char        string
	CharOffset  int // rune offset of the character within the token
	Choose      string
	ContextText string // surrounding input excerpt, kept as provenance
}

// Generator synthesizes override rules.
type Generator struct {
	policy LadderPolicy
	now    func() time.Time
}

func NewGenerator(policy LadderPolicy) *Generator {
	if policy.ExactTextMinLen < 1 {
		policy = DefaultLadder
	}
	return &Generator{policy: policy, now: time.Now}
}

var overrideIDRE = regexp.MustCompile(`^override_(\d{4}-\d{2}-\d{2})_(\d{4})$`)

// Generate builds a new rule for obs. Its priority strictly exceeds
// every rule in snap, and its id extends today's serial sequence over
// existingIDs so ids are unique and never reused.
func (g *Generator) Generate(obs Observation, snap *Snapshot, existingIDs []string) Rule {
	today := g.now().Format("2006-01-02")
	serial := 0
	for _, id := range existingIDs {
		m := overrideIDRE.FindStringSubmatch(id)
		if m == nil || m[1] != today {
			continue
		}
		if n, err := strconv.Atoi(m[2]); err == nil && n > serial {
			serial = n
		}
	}

	priority := snap.MaxPriority() + 1
	if priority < overridePriorityFloor {
		priority = overridePriorityFloor
	}

	choose := pinyin.Normalize(obs.Choose)
	rule := Rule{
		ID:       fmt.Sprintf("override_%s_%04d", today, serial+1),
		Priority: priority,
		Description: fmt.Sprintf("user override: %s(%s)=%s",
			obs.Char, obs.Token.Text, choose),
		Match:  g.buildMatch(obs),
		Target: Target{Char: obs.Char, Occurrence: occurrenceOf(obs)},
		Choose: choose,
		Meta: map[string]any{
			"created_at": today,
			"source":     "user",
			"example":    obs.ContextText,
		},
	}
	return rule
}

// buildMatch walks the strength ladder: multi-character tokens pin the
// exact token text, single-character tokens additionally bind their
// neighbors. Observed POS/NER tags are attached in both cases so the
// rule stays context aware even with an exact-text anchor.
func (g *Generator) buildMatch(obs Observation) Match {
	self := &MatchPart{Text: obs.Token.Text}
	attachTags(self, obs.Token)
	m := Match{Self: self}

	if utf8.RuneCountInString(obs.Token.Text) >= g.policy.ExactTextMinLen {
		return m
	}

	if obs.Prev != nil {
		prev := &MatchPart{TextIn: []string{obs.Prev.Text}}
		attachTags(prev, *obs.Prev)
		m.Prev = prev
	}
	if obs.Next != nil {
		next := &MatchPart{TextIn: []string{obs.Next.Text}}
		attachTags(next, *obs.Next)
		m.Next = next
	}
	return m
}

// attachTags adds upos/xpos/ner constraints when the token carries real
// tags; fallback placeholders would only make the rule brittle.
func attachTags(p *MatchPart, tok tagger.Token) {
	if tok.UPOS != "" && tok.UPOS != tagger.UnknownUPOS {
		p.UPOSIn = []string{tok.UPOS}
	}
	if tok.XPOS != "" && tok.XPOS != tagger.UnknownXPOS {
		p.XPOSIn = []string{tok.XPOS}
	}
	if tok.NER != "" && tok.NER != tagger.UnknownNER {
		p.NERIn = []string{tok.NER}
	}
}

// occurrenceOf counts which occurrence of the character, 1-based and
// per token, the observed offset addresses.
func occurrenceOf(obs Observation) Occurrence {
	count := 0
	for i, r := range []rune(obs.Token.Text) {
		if string(r) == obs.Char {
			count++
		}
		if i == obs.CharOffset {
			break
		}
	}
	if count < 1 {
		count = 1
	}
	return Occurrence(count)
}
