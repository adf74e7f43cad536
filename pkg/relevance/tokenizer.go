package relevance

import (
	"regexp"
	"strings"
)

// Tokens is the extraction result for one text surface
type Tokens struct {
	Keywords  []string // lowercased content words, stop-words and short tokens dropped
	TechTerms []string // CamelCase or ALLCAPS runs, as written
	Quoted    []string // quoted substrings
}

var (
	techTermRe = regexp.MustCompile(`\b(?:[A-Z][a-z0-9]+(?:[A-Z][a-z0-9]+)+|[A-Z]{2,})\b`)
	quotedRe   = regexp.MustCompile(`"([^"]+)"|'([^']+)'` + "|`([^`]+)`")
	punctRe    = regexp.MustCompile(`[^a-z0-9]+`)
)

var stopWords = map[string]bool{
	"about": true, "after": true, "again": true, "also": true, "because": true,
	"been": true, "before": true, "being": true, "between": true, "both": true,
	"could": true, "does": true, "doing": true, "down": true, "during": true,
	"each": true, "from": true, "further": true, "have": true, "having": true,
	"here": true, "into": true, "just": true, "more": true, "most": true,
	"only": true, "other": true, "over": true, "same": true, "should": true,
	"some": true, "such": true, "than": true, "that": true, "their": true,
	"them": true, "then": true, "there": true, "these": true, "they": true,
	"this": true, "those": true, "through": true, "under": true, "until": true,
	"very": true, "what": true, "when": true, "where": true, "which": true,
	"while": true, "will": true, "with": true, "would": true, "your": true,
}

// ExtractTokens tokenizes free text: lowercase, strip punctuation, split on
// whitespace, drop stop-words and tokens of length <= 3. Technical terms
// and quoted substrings are extracted separately from the raw text.
func ExtractTokens(text string) Tokens {
	var tok Tokens

	for _, m := range techTermRe.FindAllString(text, -1) {
		tok.TechTerms = appendUnique(tok.TechTerms, m)
	}
	for _, groups := range quotedRe.FindAllStringSubmatch(text, -1) {
		for _, g := range groups[1:] {
			if g != "" {
				tok.Quoted = appendUnique(tok.Quoted, g)
			}
		}
	}

	lowered := strings.ToLower(text)
	for _, word := range strings.Fields(lowered) {
		word = punctRe.ReplaceAllString(word, "")
		if len(word) <= 3 || stopWords[word] {
			continue
		}
		tok.Keywords = appendUnique(tok.Keywords, word)
	}

	return tok
}

// LexicalOverlap is the token-set Jaccard similarity of two texts, used as
// the pair score for deduplication when no similarity provider is present.
func LexicalOverlap(a, b string) float64 {
	ta := ExtractTokens(a).Keywords
	tb := ExtractTokens(b).Keywords
	if len(ta) == 0 && len(tb) == 0 {
		return 0
	}

	setA := make(map[string]bool, len(ta))
	for _, t := range ta {
		setA[t] = true
	}
	shared := 0
	union := len(setA)
	for _, t := range tb {
		if setA[t] {
			shared++
			delete(setA, t) // count each shared token once
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

func appendUnique(list []string, s string) []string {
	for _, e := range list {
		if e == s {
			return list
		}
	}
	return append(list, s)
}
