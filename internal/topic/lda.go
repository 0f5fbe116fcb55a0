package topic

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/james-bowman/nlp"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNoDocuments       = errors.New("no documents to model: the project has no non-empty reports")
	ErrEmptyVocabulary   = errors.New("no terms left after stop-word filtering")
	ErrInvalidTopicCount = errors.New("number of topics must be at least 1")
)

// Model is a fitted topic model in plain slices.
type Model struct {
	K          int
	Vocab      []string    // term id -> term
	TopicTerm  [][]float64 // K x V, each row a distribution over terms
	DocTopic   [][]float64 // D x K, each row a distribution over topics
	TermFreq   []float64   // V, corpus-wide term counts
	DocLengths []float64   // D, token counts per document
}

// Fit builds a bag-of-words corpus from docs and fits an LDA model with k
// topics. k is clamped to the vocabulary size. docs are expected to be
// Tokenize output joined with spaces; the vectoriser splits them again on
// letter runs, which leaves such text unchanged.
func Fit(docs []string, k, iterations int) (*Model, error) {
	if k < 1 {
		return nil, ErrInvalidTopicCount
	}
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}
	// the vectoriser only keeps runs of letters
	if !hasLetters(docs) {
		return nil, ErrEmptyVocabulary
	}

	vectoriser := nlp.NewCountVectoriser()
	counts, err := vectoriser.FitTransform(docs...)
	if err != nil {
		return nil, fmt.Errorf("vectorise documents: %w", err)
	}

	nTerms := len(vectoriser.Vocabulary)
	if nTerms == 0 {
		return nil, ErrEmptyVocabulary
	}
	if k > nTerms {
		k = nTerms
	}

	vocab := make([]string, nTerms)
	for term, id := range vectoriser.Vocabulary {
		vocab[id] = term
	}

	lda := nlp.NewLatentDirichletAllocation(k)
	if iterations > 0 {
		lda.Iterations = iterations
	}
	docTopics, err := lda.FitTransform(counts)
	if err != nil {
		return nil, fmt.Errorf("fit lda: %w", err)
	}

	nDocs := len(docs)
	m := &Model{
		K:          k,
		Vocab:      vocab,
		TopicTerm:  rowsOf(lda.Components(), k, nTerms),
		DocTopic:   transpose(docTopics, k, nDocs),
		TermFreq:   make([]float64, nTerms),
		DocLengths: make([]float64, nDocs),
	}
	for t := 0; t < nTerms; t++ {
		for d := 0; d < nDocs; d++ {
			c := counts.At(t, d)
			m.TermFreq[t] += c
			m.DocLengths[d] += c
		}
	}
	for _, row := range m.TopicTerm {
		normalize(row)
	}
	for _, row := range m.DocTopic {
		normalize(row)
	}
	return m, nil
}

// rowsOf copies an r x c matrix into row slices.
func rowsOf(a mat.Matrix, r, c int) [][]float64 {
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
		for j := range out[i] {
			out[i][j] = a.At(i, j)
		}
	}
	return out
}

// transpose copies an r x c matrix into c rows of length r.
func transpose(a mat.Matrix, r, c int) [][]float64 {
	out := make([][]float64, c)
	for j := range out {
		out[j] = make([]float64, r)
		for i := range out[j] {
			out[j][i] = a.At(i, j)
		}
	}
	return out
}

// normalize scales v to sum to one; an all-zero vector becomes uniform.
func normalize(v []float64) {
	if len(v) == 0 {
		return
	}
	for i, x := range v {
		if x < 0 {
			v[i] = 0
		}
	}
	sum := floats.Sum(v)
	if sum <= 0 {
		for i := range v {
			v[i] = 1 / float64(len(v))
		}
		return
	}
	floats.Scale(1/sum, v)
}

func hasLetters(docs []string) bool {
	for _, d := range docs {
		if strings.IndexFunc(d, unicode.IsLetter) >= 0 {
			return true
		}
	}
	return false
}
