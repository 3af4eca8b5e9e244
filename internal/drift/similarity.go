package drift

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/floats"
)

// Scorer computes a similarity in [0,1] between the goal and the current
// state. An error makes the engine fall back to LexicalOverlap.
type Scorer interface {
	Similarity(goal, state string) (float64, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(goal, state string) (float64, error)

// Similarity implements Scorer.
func (f ScorerFunc) Similarity(goal, state string) (float64, error) {
	return f(goal, state)
}

// TFIDFScorer fits a unigram+bigram TF-IDF vocabulary on exactly the two
// compared texts and returns their cosine similarity. The vocabulary is not
// kept between calls, so scores from different checks are not comparable.
type TFIDFScorer struct {
	maxFeatures int
	stopWords   map[string]struct{}
}

// NewTFIDFScorer returns a scorer capped to maxFeatures terms (0 = unbounded).
func NewTFIDFScorer(maxFeatures int) *TFIDFScorer {
	return &TFIDFScorer{maxFeatures: maxFeatures, stopWords: englishStopWords}
}

// Similarity implements Scorer.
func (s *TFIDFScorer) Similarity(goal, state string) (float64, error) {
	docs := [][]string{s.analyze(goal), s.analyze(state)}

	vocab := s.vocabulary(docs)
	if len(vocab) == 0 {
		return 0, ErrEmptyVocabulary
	}

	index := make(map[string]int, len(vocab))
	for i, term := range vocab {
		index[term] = i
	}

	counts := make([][]float64, len(docs))
	df := make([]float64, len(vocab))
	for d, terms := range docs {
		counts[d] = make([]float64, len(vocab))
		for _, term := range terms {
			if i, ok := index[term]; ok {
				counts[d][i]++
			}
		}
		for i, c := range counts[d] {
			if c > 0 {
				df[i]++
			}
		}
	}

	// Smoothed idf: ln((1+n)/(1+df)) + 1.
	n := float64(len(docs))
	for d := range counts {
		for i := range counts[d] {
			counts[d][i] *= math.Log((1+n)/(1+df[i])) + 1
		}
	}

	return cosine(counts[0], counts[1]), nil
}

// vocabulary returns the indexed terms, keeping the maxFeatures most frequent
// across both documents. Ties break alphabetically.
func (s *TFIDFScorer) vocabulary(docs [][]string) []string {
	freq := make(map[string]int)
	for _, terms := range docs {
		for _, term := range terms {
			freq[term]++
		}
	}
	vocab := make([]string, 0, len(freq))
	for term := range freq {
		vocab = append(vocab, term)
	}
	sort.Slice(vocab, func(i, j int) bool {
		if freq[vocab[i]] != freq[vocab[j]] {
			return freq[vocab[i]] > freq[vocab[j]]
		}
		return vocab[i] < vocab[j]
	})
	if s.maxFeatures > 0 && len(vocab) > s.maxFeatures {
		vocab = vocab[:s.maxFeatures]
	}
	return vocab
}

// analyze lowercases, tokenizes, drops stop words and emits unigrams followed
// by bigrams of the remaining token stream.
func (s *TFIDFScorer) analyze(text string) []string {
	tokens := tokenize(text)
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, stop := s.stopWords[tok]; !stop {
			kept = append(kept, tok)
		}
	}
	terms := make([]string, 0, 2*len(kept))
	terms = append(terms, kept...)
	for i := 0; i+1 < len(kept); i++ {
		terms = append(terms, kept[i]+" "+kept[i+1])
	}
	return terms
}

// tokenize splits on anything that is not a letter, digit or underscore and
// drops single-character tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func cosine(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

// LexicalOverlap is the degrade path: the Jaccard index of the lowercase
// whitespace-separated word sets, 0 when both are empty.
func LexicalOverlap(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	union := len(setA)
	shared := 0
	for w := range setB {
		if _, ok := setA[w]; ok {
			shared++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
