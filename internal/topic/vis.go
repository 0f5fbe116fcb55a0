package topic

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultLambda = 0.6
	DefaultTerms  = 30
)

// TermScore is one bar of a topic's term chart.
type TermScore struct {
	Term      string  `json:"term"`
	Weight    float64 `json:"weight"`    // p(term | topic)
	Frequency float64 `json:"frequency"` // estimated count of term inside the topic
	Overall   float64 `json:"overall"`   // corpus-wide count of term
	Relevance float64 `json:"relevance"`
}

// TopicView is one topic on the intertopic map.
type TopicView struct {
	ID    int         `json:"id"`    // 1-based
	Share float64     `json:"share"` // percentage of corpus tokens
	X     float64     `json:"x"`     // principal coordinates
	Y     float64     `json:"y"`
	Terms []TermScore `json:"terms"`
}

// DocumentView is one row of the document/topic table.
type DocumentView struct {
	Name     string    `json:"name"`
	User     string    `json:"user"`
	Topics   []float64 `json:"topics"`
	Dominant int       `json:"dominant"` // 1-based topic id
}

// Visualization is everything the HTML page shows.
type Visualization struct {
	Project      string         `json:"project"`
	K            int            `json:"k"`
	Documents    int            `json:"documents"`
	VocabSize    int            `json:"vocab_size"`
	Lambda       float64        `json:"lambda"`
	Topics       []TopicView    `json:"topics"`
	Docs         []DocumentView `json:"docs"`
	OverallTerms []TermScore    `json:"overall_terms"`
}

type PrepareOptions struct {
	Lambda float64 // relevance weight in [0,1]
	Terms  int     // terms shown per topic
}

// Prepare computes topic prevalence, the intertopic distance map and the
// most relevant terms of every topic. Relevance of term w in topic t is
// λ·log p(w|t) + (1-λ)·log(p(w|t)/p(w)).
func Prepare(project string, m *Model, docs []Document, opts PrepareOptions) *Visualization {
	lambda := opts.Lambda
	if lambda < 0 || lambda > 1 {
		lambda = DefaultLambda
	}
	nTerms := opts.Terms
	if nTerms <= 0 {
		nTerms = DefaultTerms
	}
	if nTerms > len(m.Vocab) {
		nTerms = len(m.Vocab)
	}

	totalTokens := floats.Sum(m.TermFreq)
	termProb := make([]float64, len(m.TermFreq))
	for i, f := range m.TermFreq {
		termProb[i] = f / totalTokens
	}

	topicTokens := make([]float64, m.K)
	for d, row := range m.DocTopic {
		for t, p := range row {
			topicTokens[t] += p * m.DocLengths[d]
		}
	}
	topicSum := floats.Sum(topicTokens)

	coords := intertopicCoordinates(m.TopicTerm)

	v := &Visualization{
		Project:   project,
		K:         m.K,
		Documents: len(m.DocTopic),
		VocabSize: len(m.Vocab),
		Lambda:    lambda,
	}

	for t := 0; t < m.K; t++ {
		scores := make([]TermScore, len(m.Vocab))
		for w, p := range m.TopicTerm[t] {
			scores[w] = TermScore{
				Term:      m.Vocab[w],
				Weight:    p,
				Frequency: p * topicTokens[t],
				Overall:   m.TermFreq[w],
				Relevance: relevance(p, termProb[w], lambda),
			}
		}
		sort.SliceStable(scores, func(i, j int) bool {
			if scores[i].Relevance != scores[j].Relevance {
				return scores[i].Relevance > scores[j].Relevance
			}
			return scores[i].Term < scores[j].Term
		})

		share := 0.0
		if topicSum > 0 {
			share = 100 * topicTokens[t] / topicSum
		}
		v.Topics = append(v.Topics, TopicView{
			ID:    t + 1,
			Share: share,
			X:     coords[t][0],
			Y:     coords[t][1],
			Terms: scores[:nTerms],
		})
	}

	overall := make([]TermScore, len(m.Vocab))
	for w, term := range m.Vocab {
		overall[w] = TermScore{Term: term, Overall: m.TermFreq[w], Frequency: m.TermFreq[w], Weight: termProb[w]}
	}
	sort.SliceStable(overall, func(i, j int) bool {
		if overall[i].Overall != overall[j].Overall {
			return overall[i].Overall > overall[j].Overall
		}
		return overall[i].Term < overall[j].Term
	})
	v.OverallTerms = overall[:nTerms]

	for d, row := range m.DocTopic {
		dv := DocumentView{Topics: row, Dominant: 1 + floats.MaxIdx(row)}
		if d < len(docs) {
			dv.Name = docs[d].Name
			dv.User = docs[d].User
		}
		v.Docs = append(v.Docs, dv)
	}
	return v
}

func relevance(pTopic, pCorpus, lambda float64) float64 {
	const eps = 1e-12
	lp := math.Log(pTopic + eps)
	lift := math.Log((pTopic + eps) / (pCorpus + eps))
	return lambda*lp + (1-lambda)*lift
}

// jensenShannon returns the Jensen-Shannon divergence of two distributions.
func jensenShannon(p, q []float64) float64 {
	var js float64
	for i := range p {
		m := (p[i] + q[i]) / 2
		if p[i] > 0 {
			js += 0.5 * p[i] * math.Log(p[i]/m)
		}
		if q[i] > 0 {
			js += 0.5 * q[i] * math.Log(q[i]/m)
		}
	}
	return math.Max(js, 0)
}

// intertopicCoordinates places topics in two dimensions by classical
// multidimensional scaling of their Jensen-Shannon distances.
func intertopicCoordinates(topicTerm [][]float64) [][2]float64 {
	n := len(topicTerm)
	coords := make([][2]float64, n)
	if n < 2 {
		return coords
	}

	sq := make([][]float64, n)
	for i := range sq {
		sq[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := jensenShannon(topicTerm[i], topicTerm[j])
			sq[i][j], sq[j][i] = d*d, d*d
		}
	}

	rowMean := make([]float64, n)
	grand := 0.0
	for i := range sq {
		rowMean[i] = floats.Sum(sq[i]) / float64(n)
		grand += rowMean[i]
	}
	grand /= float64(n)

	// B = -1/2 J D² J, with D² symmetric so row and column means coincide.
	b := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			b.SetSym(i, j, -0.5*(sq[i][j]-rowMean[i]-rowMean[j]+grand))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(b, true); !ok {
		return coords
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// eigenvalues come back in ascending order
	for axis := 0; axis < 2 && axis < n; axis++ {
		idx := n - 1 - axis
		if values[idx] <= 0 {
			continue
		}
		scale := math.Sqrt(values[idx])
		for i := 0; i < n; i++ {
			coords[i][axis] = vectors.At(i, idx) * scale
		}
	}
	return coords
}
