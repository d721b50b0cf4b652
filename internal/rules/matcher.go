package rules

import (
	"regexp"
	"strings"
	"sync"

	"hanpin/internal/tagger"
)

// regexCache memoizes compiled rule patterns. Rules are immutable, so
// the cache only grows with the loaded rule set.
var regexCache sync.Map // pattern -> *regexp.Regexp (or nil on compile error)

func compiledRegex(pattern string) *regexp.Regexp {
	if v, ok := regexCache.Load(pattern); ok {
		re, _ := v.(*regexp.Regexp)
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		re = nil
	}
	regexCache.Store(pattern, re)
	return re
}

// Matches evaluates the rule's predicate tree at one token position.
// prev and next are nil at span boundaries.
func Matches(r *Rule, self *tagger.Token, prev, next *tagger.Token) bool {
	if r.Match.Self != nil && !matchPart(r.Match.Self, self) {
		return false
	}
	if r.Match.Prev != nil {
		if prev == nil {
			if !r.Match.Prev.AllowMissing {
				return false
			}
		} else if !matchPart(r.Match.Prev, prev) {
			return false
		}
	}
	if r.Match.Next != nil {
		if next == nil {
			if !r.Match.Next.AllowMissing {
				return false
			}
		} else if !matchPart(r.Match.Next, next) {
			return false
		}
	}
	return true
}

func matchPart(p *MatchPart, tok *tagger.Token) bool {
	if tok == nil {
		return false
	}
	if p.Text != "" && p.Text != tok.Text {
		return false
	}
	if len(p.TextIn) > 0 && !contains(p.TextIn, tok.Text) {
		return false
	}
	if p.Regex != "" {
		re := compiledRegex(p.Regex)
		if re == nil || !re.MatchString(tok.Text) {
			return false
		}
	}
	if len(p.UPOSIn) > 0 && !contains(p.UPOSIn, tok.UPOS) {
		return false
	}
	if len(p.XPOSIn) > 0 && !contains(p.XPOSIn, tok.XPOS) {
		return false
	}
	if len(p.NERIn) > 0 && !contains(p.NERIn, tok.NER) {
		return false
	}
	for _, ch := range p.Contains {
		if ch != "" && !strings.Contains(tok.Text, ch) {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
