package analyzer

import (
	"sort"
	"strings"
	"unicode"
)

// stopwords excluded from locally generated keywords.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "her": true,
	"was": true, "one": true, "our": true, "out": true, "has": true,
	"have": true, "this": true, "that": true, "with": true, "from": true,
	"they": true, "will": true, "would": true, "there": true, "their": true,
	"what": true, "about": true, "which": true, "when": true, "were": true,
	"been": true, "more": true, "these": true, "than": true, "them": true,
	"into": true, "only": true, "other": true, "some": true, "such": true,
	"also": true, "your": true, "each": true, "over": true, "very": true,
	"most": true, "after": true, "where": true, "should": true, "because": true,
}

// GenerateKeywords derives up to limit keywords from the text by frequency-
// counting non-stopword tokens. It is the last line of defense when every
// model returns too few keywords.
func GenerateKeywords(text string, limit int) []string {
	counts := make(map[string]int)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, tok := range tokens {
		if len(tok) < 4 || stopwords[tok] {
			continue
		}
		counts[tok]++
	}

	keywords := make([]string, 0, len(counts))
	for tok := range counts {
		keywords = append(keywords, tok)
	}

	// Highest frequency first; ties alphabetically for stable output.
	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})

	if len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords
}
