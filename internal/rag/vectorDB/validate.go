package vectorDB

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return ragErrors.NewVectorStoreError(ragErrors.InvalidCollectionName, fmt.Sprintf("invalid collection name %q", name), nil)
	}
	return nil
}

func ValidateDimensions(dims int) error {
	if dims <= 0 {
		return ragErrors.NewVectorStoreError(ragErrors.DimensionMismatch, fmt.Sprintf("dimensions must be positive, got %d", dims), nil)
	}
	return nil
}

func ValidateVector(vector []float32, dims int) error {
	if len(vector) != dims {
		return ragErrors.NewVectorStoreError(ragErrors.DimensionMismatch, fmt.Sprintf("expected %d dimensions, got %d", dims, len(vector)), nil)
	}
	return nil
}

// ValidateRecords checks ids, content and, when present, the embedding size.
func ValidateRecords(records []Record, dims int, requireEmbedding bool) error {
	for i, r := range records {
		if strings.TrimSpace(r.Id) == "" {
			return ragErrors.NewVectorStoreError(ragErrors.InvalidDocument, fmt.Sprintf("record %d has no id", i), nil)
		}
		if strings.TrimSpace(r.Content) == "" {
			return ragErrors.NewVectorStoreError(ragErrors.InvalidDocument, fmt.Sprintf("record %q has no content", r.Id), nil)
		}
		if r.Embedding == nil {
			if requireEmbedding {
				return ragErrors.NewVectorStoreError(ragErrors.InvalidDocument, fmt.Sprintf("record %q has no embedding", r.Id), nil)
			}
			continue
		}
		if err := ValidateVector(r.Embedding, dims); err != nil {
			return err
		}
	}
	return nil
}

func NotConnected(backend docModel.BackendType) error {
	return ragErrors.NewVectorStoreError(ragErrors.ConnectionFailed, fmt.Sprintf("%s store is not connected", backend), nil)
}

func ConnectionError(message string, cause error) error {
	return ragErrors.NewVectorStoreError(ragErrors.ConnectionFailed, message, cause)
}

func OpError(op, message string, cause error) error {
	return ragErrors.NewVectorStoreError(ragErrors.OperationCode(op), message, cause)
}

func CollectionNotFound(name string) error {
	return ragErrors.NewVectorStoreError(ragErrors.CollectionNotFound, fmt.Sprintf("collection %q not found", name), nil)
}

func CollectionExists(name string) error {
	return ragErrors.NewVectorStoreError(ragErrors.CollectionExists, fmt.Sprintf("collection %q already exists", name), nil)
}

func DocumentNotFound(collection, id string) error {
	return ragErrors.NewVectorStoreError(ragErrors.DocumentNotFound, fmt.Sprintf("document %q not found in %q", id, collection), nil)
}

func SearchByTextUnsupported(backend docModel.BackendType) error {
	return ragErrors.NewVectorStoreError(ragErrors.NotImplemented, fmt.Sprintf("%s does not embed queries, embed the text and call Search", backend), nil)
}

// InBatches calls fn over consecutive sub-slices of at most VectorStoreBatchSize items.
func InBatches[T any](ctx context.Context, items []T, fn func(ctx context.Context, batch []T) error) error {
	size := config.VectorStoreBatchSize
	for start := 0; start < len(items); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+size, len(items))
		if err := fn(ctx, items[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// TopK sorts matches by descending score and keeps at most k.
func TopK(matches []Match, k int) []Match {
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k >= 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func MatchesFilter(metadata map[string]any, filter Filter) bool {
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// MergeMetadata returns base with the keys of patch applied on top.
func MergeMetadata(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

func CopyVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
