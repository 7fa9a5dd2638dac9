// Package instance defines classification examples and reads them from the
// line-oriented corpus format.
package instance

import (
	"strings"
	"unicode/utf8"
)

// Tag prefixes marking non-segment tokens.
const (
	AttributeTag  = "[a]"
	EvaluationTag = "[e]"
	PolarityTag   = "[p]"
)

// Instance is one training or inference example.
type Instance struct {
	Label       string
	Segs        []string
	Attributes  []string   // verbatim tokens, tag prefix included
	Evaluations []string   // span text, tag prefix removed
	EvalChars   [][]string // per evaluation span, its UTF-8 characters
	Polarity    string     // verbatim token, tag prefix included; "" if absent
}

// Tokens renders the instance body (everything but the label) back into the
// corpus token order.
func (inst *Instance) Tokens() []string {
	tokens := make([]string, 0, len(inst.Segs)+len(inst.Attributes)+len(inst.Evaluations)+1)
	tokens = append(tokens, inst.Segs...)
	tokens = append(tokens, inst.Attributes...)
	for _, e := range inst.Evaluations {
		tokens = append(tokens, EvaluationTag+e)
	}
	if inst.Polarity != "" {
		tokens = append(tokens, inst.Polarity)
	}
	return tokens
}

// String renders the instance as a corpus line.
func (inst *Instance) String() string {
	return strings.Join(append([]string{inst.Label}, inst.Tokens()...), " ")
}

// SplitCharacters splits s into UTF-8 characters, one per code point.
// Combining marks and the parts of emoji sequences are characters of their
// own. A byte that does not start a valid encoding becomes a one-byte
// character.
func SplitCharacters(s string) []string {
	var chars []string
	for len(s) > 0 {
		_, size := utf8.DecodeRuneInString(s)
		chars = append(chars, s[:size])
		s = s[size:]
	}
	return chars
}

// isTagged reports whether a token carries one of the tag prefixes.
func isTagged(token string) bool {
	return strings.HasPrefix(token, AttributeTag) ||
		strings.HasPrefix(token, EvaluationTag) ||
		strings.HasPrefix(token, PolarityTag)
}
