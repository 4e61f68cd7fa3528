package memory

import (
	"hash/fnv"
	"math"
	"strings"
	"sync"
)

// embeddingDim is the fixed embedding dimension spec.md §3 calls out
// ("typically 384"). The vocabulary itself grows without bound as new
// terms are seen; each term is mapped into one of embeddingDim buckets via
// feature hashing so every embedding keeps this fixed length regardless of
// vocabulary size.
const embeddingDim = 384

// Vectorizer is an incrementally-built TF-IDF embedder. Terms are hashed
// into a fixed-size vector (feature hashing) and weighted by term
// frequency times inverse document frequency, then L2-normalized so that
// cosine similarity of a vector with itself is 1.0.
type Vectorizer struct {
	mu          sync.RWMutex
	docFreq     map[string]int
	totalDocs   int
	newTermsSinceReembed int
	version     int
}

// NewVectorizer returns an empty TF-IDF vectorizer at vocabulary version 0.
func NewVectorizer() *Vectorizer {
	return &Vectorizer{docFreq: make(map[string]int)}
}

// Version returns the vocabulary generation; episodes embedded at an
// older version are stale candidates for re-embedding.
func (v *Vectorizer) Version() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// Observe folds text's terms into the vocabulary's document frequencies,
// counting newly seen terms toward the next re-embed; the vocabulary
// version itself only changes in MarkReembedded.
func (v *Vectorizer) Observe(text string) {
	terms := tokenize(text)
	if len(terms) == 0 {
		return
	}
	unique := uniqueTerms(terms)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.totalDocs++
	newTerms := 0
	for t := range unique {
		if _, known := v.docFreq[t]; !known {
			newTerms++
		}
		v.docFreq[t]++
	}
	if newTerms > 0 {
		v.newTermsSinceReembed += newTerms
	}
}

// NewTermThresholdCrossed reports whether enough new vocabulary terms have
// accumulated since the last re-embed to warrant one (spec.md §4.6: "every
// 10 writes" is the example threshold on new terms).
func (v *Vectorizer) NewTermThresholdCrossed(threshold int) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.newTermsSinceReembed >= threshold
}

// MarkReembedded bumps the vocabulary version and resets the new-term
// counter, making the current docFreq snapshot canonical for future
// embeds.
func (v *Vectorizer) MarkReembedded() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.version++
	v.newTermsSinceReembed = 0
	return v.version
}

// Embed computes a fixed-length, L2-normalized TF-IDF vector for text
// using the vocabulary snapshot at the time of the call, alongside the
// vocabulary version the embedding was computed against.
func (v *Vectorizer) Embed(text string) ([]float32, int) {
	terms := tokenize(text)

	v.mu.RLock()
	docFreq := v.docFreq
	totalDocs := v.totalDocs
	version := v.version
	v.mu.RUnlock()

	termFreq := make(map[string]int, len(terms))
	for _, t := range terms {
		termFreq[t]++
	}

	vec := make([]float32, embeddingDim)
	for term, tf := range termFreq {
		idf := inverseDocFreq(docFreq[term], totalDocs)
		weight := float32(float64(tf) * idf)
		bucket := hashBucket(term)
		vec[bucket] += weight
	}

	normalize(vec)
	return vec, version
}

func inverseDocFreq(df, totalDocs int) float64 {
	if totalDocs == 0 {
		return 1
	}
	// +1 smoothing avoids a zero/negative idf for terms seen in every doc.
	return math.Log(float64(totalDocs+1)/float64(df+1)) + 1
}

func hashBucket(term string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(term))
	return int(h.Sum32() % embeddingDim)
}

func normalize(vec []float32) {
	var sumSq float64
	for _, x := range vec {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}

func uniqueTerms(terms []string) map[string]bool {
	set := make(map[string]bool, len(terms))
	for _, t := range terms {
		set[t] = true
	}
	return set
}

// CosineSimilarity returns the cosine similarity of two equal-length
// vectors, or 0 if either is a zero vector.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
