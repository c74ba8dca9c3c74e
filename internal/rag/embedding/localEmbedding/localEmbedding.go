package localEmbedding

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/akolanti/GoIngest/internal/rag/embedding"
	"github.com/cespare/xxhash/v2"
)

const DefaultModel = "local-hash"

// Embedder is a deterministic feature hashing embedder over unigrams and bigrams.
// It needs no network and gives similar vectors to texts sharing words.
type Embedder struct {
	model string
	dims  int
}

func New(model string, dims int) *Embedder {
	if model == "" {
		model = DefaultModel
	}
	return &Embedder{model: model, dims: embedding.ResolveDimensions(model, dims)}
}

func (e *Embedder) Dimensions() int { return e.dims }
func (e *Embedder) Model() string   { return e.model }

func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return embedding.EmbedOne(ctx, e, text)
}

func (e *Embedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	return embedding.EmbedInBatches(ctx, texts, 0, e.dims, nil, func(_ context.Context, batch []string) ([][]float32, error) {
		out := make([][]float32, len(batch))
		for i, t := range batch {
			out[i] = e.vector(t)
		}
		return out, nil
	})
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func (e *Embedder) vector(text string) []float32 {
	v := make([]float32, e.dims)
	add := func(feature string, weight float32) {
		h := xxhash.Sum64String(feature)
		idx := h % uint64(e.dims)
		if h>>63 == 1 {
			weight = -weight
		}
		v[idx] += weight
	}

	tokens := tokenize(text)
	for i, tok := range tokens {
		add("u:"+tok, 1)
		if i > 0 {
			add("b:"+tokens[i-1]+" "+tok, 0.5)
		}
	}
	if len(tokens) == 0 {
		// punctuation only input still gets a stable vector
		add("raw:"+text, 1)
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range v {
			v[i] *= inv
		}
	}
	return v
}
