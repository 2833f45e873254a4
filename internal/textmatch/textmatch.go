// Package textmatch does word-level matching of short phrases against
// free text. Matching on token boundaries keeps "nec" from matching
// "connect" and "kent" from matching "kentish".
package textmatch

import (
	"strings"
	"unicode"
)

// Tokens lowercases s and splits it on anything that is not a letter or digit.
func Tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Text is a tokenized piece of text that phrases can be matched against.
type Text struct {
	tokens []string
	set    map[string]struct{}
}

// New tokenizes s.
func New(s string) Text {
	toks := Tokens(s)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return Text{tokens: toks, set: set}
}

// HasToken reports whether the single lowercase token tok occurs.
func (t Text) HasToken(tok string) bool {
	_, ok := t.set[tok]
	return ok
}

// Has reports whether phrase occurs as a run of whole tokens.
func (t Text) Has(phrase string) bool {
	p := Tokens(phrase)
	if len(p) == 0 {
		return false
	}
	if len(p) == 1 {
		return t.HasToken(p[0])
	}
	for i := 0; i+len(p) <= len(t.tokens); i++ {
		match := true
		for j := range p {
			if t.tokens[i+j] != p[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// HasAny reports whether any of phrases occurs.
func (t Text) HasAny(phrases []string) bool {
	for _, p := range phrases {
		if t.Has(p) {
			return true
		}
	}
	return false
}

// Count returns how many distinct phrases occur at least once.
func (t Text) Count(phrases []string) int {
	seen := make(map[string]struct{}, len(phrases))
	n := 0
	for _, p := range phrases {
		key := strings.Join(Tokens(p), " ")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if t.Has(p) {
			n++
		}
	}
	return n
}

// Set returns the distinct tokens of s, minus any in stop and any shorter
// than minLen runes.
func Set(s string, stop map[string]struct{}, minLen int) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range Tokens(s) {
		if len([]rune(tok)) < minLen {
			continue
		}
		if _, skip := stop[tok]; skip {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}
