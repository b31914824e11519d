// Package phonetic matches misheard words against a clinical vocabulary
// using Double Metaphone codes and Jaro-Winkler similarity.
//
// A vocabulary term is a candidate when any of its Double Metaphone codes
// overlaps with a code of the input. Candidates are ranked by Jaro-Winkler
// similarity and accepted above the phonetic threshold. Without a phonetic
// candidate, a stricter fuzzy threshold applies to plain string similarity.
//
// Short inputs are never matched: common words such as "pain" or "dose" are
// too close to ordinary speech to be corrected safely.
package phonetic

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.88
	defaultFuzzyThreshold    = 0.93
	defaultMinLength         = 5
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically matching term. Default 0.88.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score when no phonetic
// candidate exists. Default 0.93.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) { m.fuzzyThreshold = threshold }
}

// WithMinLength sets the minimum input length in characters. Default 5.
func WithMinLength(n int) Option {
	return func(m *Matcher) { m.minLength = n }
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	minLength         int
}

// New returns a Matcher.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		minLength:         defaultMinLength,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the vocabulary term closest to word. word may be a phrase;
// multi-word terms such as "blood test" compare token by token as well as
// whole. An exact case-insensitive match is reported as unmatched because
// nothing needs correcting.
//
// When matched is false, corrected equals word and confidence is 0.
func (m *Matcher) Match(word string, vocabulary []string) (corrected string, confidence float64, matched bool) {
	in := strings.ToLower(strings.TrimSpace(word))
	if len(vocabulary) == 0 || utf8.RuneCountInString(in) < m.minLength {
		return word, 0, false
	}
	inTokens := strings.Fields(in)
	inCodes := codes(inTokens)

	var (
		best      string
		bestScore float64
		bestPhon  bool
	)
	for _, term := range vocabulary {
		t := strings.ToLower(strings.TrimSpace(term))
		if t == "" {
			continue
		}
		if t == in {
			return word, 0, false
		}
		tTokens := strings.Fields(t)
		if len(tTokens) != len(inTokens) {
			continue
		}
		score := similarity(inTokens, tTokens, in, t)

		if overlaps(inCodes, codes(tTokens)) {
			if score >= m.phoneticThreshold && (!bestPhon || score > bestScore) {
				best, bestScore, bestPhon = term, score, true
			}
		} else if !bestPhon && score >= m.fuzzyThreshold && score > bestScore {
			best, bestScore = term, score
		}
	}
	if best == "" {
		return word, 0, false
	}
	return best, bestScore, true
}

func codes(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			out[p] = struct{}{}
		}
		if s != "" {
			out[s] = struct{}{}
		}
	}
	return out
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}

// similarity is the Jaro-Winkler score of the full strings, or of the
// concatenated tokens for phrases, whichever is higher. Token counts are
// equal, so each token pair must also agree: the weakest pair caps the score.
func similarity(inTokens, termTokens []string, in, term string) float64 {
	score := matchr.JaroWinkler(in, term, false)
	if len(inTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inTokens, ""), strings.Join(termTokens, ""), false); s > score {
			score = s
		}
		for i := range inTokens {
			if s := matchr.JaroWinkler(inTokens[i], termTokens[i], false); s < score {
				score = s
			}
		}
	}
	return score
}
