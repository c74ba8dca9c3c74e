package chunking

import (
	"regexp"

	"github.com/akolanti/GoIngest/internal/domain/commonModels"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
)

var tokenPattern = regexp.MustCompile(`\S+`)

// slidingWindow counts ChunkSize and ChunkOverlap in whitespace tokens.
type slidingWindow struct {
	opts Options
}

func (w *slidingWindow) Type() docModel.StrategyType { return docModel.SlidingWindow }

func (w *slidingWindow) Chunk(text string) []commonModels.TextChunk {
	locs := tokenPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	toRune := byteToRune(text)

	size := w.opts.ChunkSize
	step := size - w.opts.ChunkOverlap

	var spans []span
	for i := 0; i < len(locs); i += step {
		j := min(i+size, len(locs))
		spans = append(spans, span{toRune[locs[i][0]], toRune[locs[j-1][1]]})
		if j == len(locs) {
			break
		}
	}
	return emit([]rune(text), spans, w.opts.MinChunkSize)
}
