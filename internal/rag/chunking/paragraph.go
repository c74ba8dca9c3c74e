package chunking

import (
	"unicode"

	"github.com/akolanti/GoIngest/internal/domain/commonModels"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
)

type paragraph struct {
	opts Options
}

func (p *paragraph) Type() docModel.StrategyType { return docModel.Paragraph }

func (p *paragraph) Chunk(text string) []commonModels.TextChunk {
	runes := []rune(text)
	maxSize := p.opts.maxSize()

	var spans, run []span
	flush := func() {
		spans = append(spans, pack(run, maxSize, p.opts.ChunkOverlap)...)
		run = nil
	}

	for _, para := range paragraphSpans(runes) {
		if para.end-para.start <= maxSize {
			run = append(run, para)
			continue
		}
		flush()
		for _, sub := range pack(sentenceSpans(string(runes[para.start:para.end])), maxSize, p.opts.ChunkOverlap) {
			spans = append(spans, span{sub.start + para.start, sub.end + para.start})
		}
	}
	flush()
	return emit(runes, spans, p.opts.MinChunkSize)
}

// paragraphSpans splits on blank lines; each span is trimmed of surrounding whitespace.
func paragraphSpans(runes []rune) []span {
	var spans []span
	n := len(runes)
	start, last := -1, -1

	lineStart := 0
	for lineStart <= n {
		lineEnd := lineStart
		for lineEnd < n && runes[lineEnd] != '\n' {
			lineEnd++
		}

		blank := true
		for i := lineStart; i < lineEnd; i++ {
			if !unicode.IsSpace(runes[i]) {
				blank = false
				if start < 0 {
					start = i
				}
				last = i + 1
			}
		}
		if blank && start >= 0 {
			spans = append(spans, span{start, last})
			start = -1
		}
		lineStart = lineEnd + 1
	}
	if start >= 0 {
		spans = append(spans, span{start, last})
	}
	return spans
}
