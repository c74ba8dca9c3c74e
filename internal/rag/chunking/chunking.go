package chunking

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/akolanti/GoIngest/internal/domain/commonModels"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
)

// Strategy splits text into chunks. Offsets are rune offsets into the input.
type Strategy interface {
	Type() docModel.StrategyType
	Chunk(text string) []commonModels.TextChunk
}

type Options struct {
	ChunkSize    int
	ChunkOverlap int
	MinChunkSize int
	MaxChunkSize int
	Separator    string
}

func OptionsFromConfig(cfg docModel.ChunkingStrategyConfig) Options {
	return Options{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		MinChunkSize: cfg.MinChunkSize,
		MaxChunkSize: cfg.MaxChunkSize,
		Separator:    cfg.Separator,
	}
}

func (o Options) Validate() error {
	switch {
	case o.ChunkSize <= 0:
		return invalid("chunk size must be positive, got %d", o.ChunkSize)
	case o.ChunkOverlap < 0:
		return invalid("chunk overlap must not be negative, got %d", o.ChunkOverlap)
	case o.ChunkOverlap >= o.ChunkSize:
		return invalid("chunk overlap %d must be smaller than chunk size %d", o.ChunkOverlap, o.ChunkSize)
	case o.MinChunkSize < 0 || o.MaxChunkSize < 0:
		return invalid("min/max chunk size must not be negative")
	case o.MinChunkSize > 0 && o.MaxChunkSize > 0 && o.MinChunkSize > o.MaxChunkSize:
		return invalid("min chunk size %d exceeds max chunk size %d", o.MinChunkSize, o.MaxChunkSize)
	}
	return nil
}

func (o Options) maxSize() int {
	if o.MaxChunkSize > 0 {
		return o.MaxChunkSize
	}
	return o.ChunkSize
}

func invalid(format string, args ...any) error {
	return ragErrors.NewProcessingError(ragErrors.InvalidChunkOptions, fmt.Sprintf(format, args...), nil)
}

// New validates the options and returns the strategy registered for t.
func New(t docModel.StrategyType, opts Options) (Strategy, error) {
	switch t {
	case docModel.FixedSize, docModel.Sentence, docModel.Paragraph, docModel.SlidingWindow:
	case docModel.Semantic, docModel.Custom:
		return nil, ragErrors.NewProcessingError(ragErrors.NotImplemented, fmt.Sprintf("chunking strategy %q is not implemented", t), nil)
	default:
		return nil, ragErrors.NewProcessingError(ragErrors.UnknownStrategy, fmt.Sprintf("unknown chunking strategy %q", t), nil)
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	switch t {
	case docModel.FixedSize:
		return &fixedSize{opts: opts}, nil
	case docModel.Sentence:
		return &sentence{opts: opts}, nil
	case docModel.Paragraph:
		return &paragraph{opts: opts}, nil
	default:
		return &slidingWindow{opts: opts}, nil
	}
}

func FromConfig(cfg docModel.ChunkingStrategyConfig) (Strategy, error) {
	return New(cfg.Type, OptionsFromConfig(cfg))
}

// EstimateTokens approximates tokens as ceil(runes/4).
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}

type span struct{ start, end int }

// emit turns rune spans into chunks, trimming content and dropping short ones.
func emit(runes []rune, spans []span, minSize int) []commonModels.TextChunk {
	out := make([]commonModels.TextChunk, 0, len(spans))
	for _, s := range spans {
		if s.start >= s.end {
			continue
		}
		content := strings.TrimSpace(string(runes[s.start:s.end]))
		if content == "" || utf8.RuneCountInString(content) < minSize {
			continue
		}
		out = append(out, commonModels.TextChunk{
			Content:    content,
			StartIndex: s.start,
			EndIndex:   s.end,
		})
	}
	return out
}

// pack greedily groups consecutive spans up to maxSize runes, carrying trailing
// spans of at most overlap runes into the next group when they still fit.
func pack(spans []span, maxSize, overlap int) []span {
	var groups []span
	i := 0
	for i < len(spans) {
		first := i
		next := i + 1
		for next < len(spans) && spans[next].end-spans[first].start <= maxSize {
			next++
		}
		groups = append(groups, span{spans[first].start, spans[next-1].end})
		if next >= len(spans) {
			break
		}

		resume := next
		if overlap > 0 {
			k := next
			for k-1 > first && spans[next-1].end-spans[k-1].start <= overlap {
				k--
			}
			if k < next && spans[next].end-spans[k].start <= maxSize {
				resume = k
			}
		}
		i = resume
	}
	return groups
}

// byteToRune maps every byte offset of s (plus len(s)) to its rune offset.
func byteToRune(s string) []int {
	m := make([]int, len(s)+1)
	r := 0
	for i := range s {
		for j := i; j < len(s) && (j == i || !utf8.RuneStart(s[j])); j++ {
			m[j] = r
		}
		r++
	}
	m[len(s)] = r
	return m
}
