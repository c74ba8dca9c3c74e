package chunking

import (
	"strings"
	"unicode/utf8"

	"github.com/akolanti/GoIngest/internal/domain/commonModels"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
)

// breakPoints are tried in order when snapping a window end.
var breakPoints = []string{"\n\n", "\n", ". ", "! ", "? ", "; ", ", ", " "}

type fixedSize struct {
	opts Options
}

func (f *fixedSize) Type() docModel.StrategyType { return docModel.FixedSize }

func (f *fixedSize) Chunk(text string) []commonModels.TextChunk {
	runes := []rune(text)
	n := len(runes)
	size, overlap := f.opts.ChunkSize, f.opts.ChunkOverlap

	breaks := breakPoints
	if f.opts.Separator != "" {
		breaks = append([]string{f.opts.Separator}, breakPoints...)
	}

	var spans []span
	start := 0
	for start < n {
		end := min(start+size, n)
		if end < n {
			end = snap(runes, start, end, size, breaks)
		}
		spans = append(spans, span{start, end})
		if end >= n {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return emit(runes, spans, f.opts.MinChunkSize)
}

// snap moves end back to the last break point found past the window midpoint.
func snap(runes []rune, start, end, size int, breaks []string) int {
	window := string(runes[start:end])
	midpoint := start + size/2
	for _, b := range breaks {
		idx := strings.LastIndex(window, b)
		if idx < 0 {
			continue
		}
		pos := start + utf8.RuneCountInString(window[:idx])
		if pos > midpoint {
			return pos + utf8.RuneCountInString(b)
		}
	}
	return end
}
