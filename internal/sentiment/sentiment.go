// Package sentiment scores message text against a fixed valence
// lexicon. Score is pure and performs no I/O; it runs once per message
// at ingestion and the result is stored with the message.
package sentiment

import "strings"

// Result is the outcome of scoring one text.
type Result struct {
	Score    int
	Positive []string
	Negative []string
}

// Score tokenizes text, looks every token up in the lexicon, and sums
// the matched valences. Matched terms are reported in encounter order,
// duplicates included, mirroring how often each term contributed.
func Score(text string) Result {
	var res Result
	for _, token := range tokenize(text) {
		value, ok := lexicon[token]
		if !ok {
			continue
		}
		res.Score += value
		if value > 0 {
			res.Positive = append(res.Positive, token)
		} else {
			res.Negative = append(res.Negative, token)
		}
	}
	return res
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})
}

func isWordRune(r rune) bool {
	return r == '\'' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127
}
