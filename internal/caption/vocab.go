package caption

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Sentinel tokens of the captioning vocabulary.
const (
	StartToken   = "<start>"
	EndToken     = "<end>"
	UnknownToken = "<unk>"
)

// Vocabulary maps decoder token ids to words.
type Vocabulary struct {
	words []string
}

// NewVocabulary builds a vocabulary where words[i] is the word of id i.
func NewVocabulary(words []string) *Vocabulary {
	return &Vocabulary{words: words}
}

// LoadVocabulary reads a JSON vocabulary artifact. Accepted shapes are an array
// of words indexed by id, an object of id -> word, or either one nested under
// an "idx2word" key.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read vocabulary: %w", err)
	}
	v, err := ParseVocabulary(data)
	if err != nil {
		return nil, fmt.Errorf("cannot parse vocabulary %s: %w", path, err)
	}
	return v, nil
}

func ParseVocabulary(data []byte) (*Vocabulary, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty vocabulary")
	}

	switch data[0] {
	case '[':
		var words []string
		if err := json.Unmarshal(data, &words); err != nil {
			return nil, err
		}
		return checkVocabulary(words)

	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, err
		}
		if nested, ok := obj["idx2word"]; ok {
			return ParseVocabulary(nested)
		}

		maxID := -1
		byID := make(map[int]string, len(obj))
		for k, raw := range obj {
			id, err := strconv.Atoi(k)
			if err != nil || id < 0 {
				return nil, fmt.Errorf("invalid token id %q", k)
			}
			var w string
			if err := json.Unmarshal(raw, &w); err != nil {
				return nil, fmt.Errorf("token %d: %w", id, err)
			}
			byID[id] = w
			if id > maxID {
				maxID = id
			}
		}
		words := make([]string, maxID+1)
		for id, w := range byID {
			words[id] = w
		}
		return checkVocabulary(words)
	}

	return nil, fmt.Errorf("vocabulary must be a JSON array or object")
}

func checkVocabulary(words []string) (*Vocabulary, error) {
	hasEnd := false
	for _, w := range words {
		if w == EndToken {
			hasEnd = true
			break
		}
	}
	if !hasEnd {
		return nil, fmt.Errorf("vocabulary has no %s token", EndToken)
	}
	return &Vocabulary{words: words}, nil
}

// Len returns the number of token ids.
func (v *Vocabulary) Len() int {
	return len(v.words)
}

// Word returns the word for id; ids outside the vocabulary are UnknownToken.
func (v *Vocabulary) Word(id int) string {
	if id < 0 || id >= len(v.words) || v.words[id] == "" {
		return UnknownToken
	}
	return v.words[id]
}

// Decode turns sampled ids into a sentence. Start and end tokens are dropped
// and decoding stops at the first end token.
func (v *Vocabulary) Decode(ids []int) string {
	words := make([]string, 0, len(ids))
	for _, id := range ids {
		w := v.Word(id)
		if w == EndToken {
			break
		}
		if w == StartToken {
			continue
		}
		words = append(words, w)
	}
	return strings.Join(words, " ")
}
