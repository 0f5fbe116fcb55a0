package topic

import "strings"

// defaultStopWords is the English stop-word list applied to caption text.
// Captioning models lean heavily on articles, prepositions and a handful of
// filler verbs; all of them are listed here in lowercase.
var defaultStopWords = []string{
	"a", "about", "above", "after", "again", "against", "all", "am", "an", "and",
	"any", "are", "around", "as", "at", "be", "because", "been", "before", "being",
	"below", "between", "both", "but", "by", "can", "could", "did", "do", "does",
	"doing", "down", "during", "each", "few", "for", "from", "further", "had", "has",
	"have", "having", "he", "her", "here", "hers", "herself", "him", "himself", "his",
	"how", "i", "if", "in", "into", "is", "it", "its", "itself", "just",
	"me", "more", "most", "my", "myself", "near", "next", "no", "nor", "not",
	"now", "of", "off", "on", "once", "only", "or", "other", "our", "ours",
	"ourselves", "out", "over", "own", "same", "she", "should", "so", "some", "such",
	"than", "that", "the", "their", "theirs", "them", "themselves", "then", "there", "these",
	"they", "this", "those", "through", "to", "too", "top", "under", "until", "up",
	"very", "was", "we", "were", "what", "when", "where", "which", "while", "who",
	"whom", "why", "will", "with", "you", "your", "yours", "yourself", "yourselves",
	"unk", "start", "end", "pad",
}

// StopWords is a set of lowercase words dropped from documents.
type StopWords map[string]struct{}

// NewStopWords returns the default list plus extra, all lowercased.
func NewStopWords(extra ...string) StopWords {
	sw := make(StopWords, len(defaultStopWords)+len(extra))
	for _, w := range defaultStopWords {
		sw[w] = struct{}{}
	}
	for _, w := range extra {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			sw[w] = struct{}{}
		}
	}
	return sw
}

// Contains reports whether word, compared in lowercase, is a stop word.
func (s StopWords) Contains(word string) bool {
	_, ok := s[strings.ToLower(word)]
	return ok
}
