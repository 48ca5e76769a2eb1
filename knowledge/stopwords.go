package knowledge

import "unicode/utf8"

// stopwords are English function words that carry no topic. They are
// dropped from queries before matching.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "about", "am", "an", "and", "any", "are", "as", "at", "be", "been", "but", "by",
		"can", "could", "did", "do", "does", "for", "from", "get", "had", "has", "have",
		"hello", "hi", "how", "i", "if", "in", "into", "is", "it", "its", "just", "me",
		"much", "my", "no", "not", "of", "on", "or", "our", "please", "so", "some", "than",
		"thanks", "that", "the", "their", "them", "then", "there", "these", "they", "this",
		"to", "too", "us", "very", "was", "we", "were", "what", "when", "where", "which",
		"who", "why", "will", "with", "would", "you", "your",
	} {
		stopwords[w] = struct{}{}
	}
}

// SearchTerms tokenizes text and keeps only the tokens that can identify a
// topic: stopwords and one-character non-CJK tokens are removed. A lone CJK
// character still counts.
func SearchTerms(text string) []string {
	toks := Tokenize(text)
	terms := toks[:0]
	for _, t := range toks {
		if _, ok := stopwords[t]; ok {
			continue
		}
		if r, size := utf8.DecodeRuneInString(t); size == len(t) && !isCJK(r) {
			continue
		}
		terms = append(terms, t)
	}
	return terms
}
