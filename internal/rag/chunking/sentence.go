package chunking

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/akolanti/GoIngest/internal/domain/commonModels"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
)

const maskRune = '\x1f'

var abbreviations = []string{"Mr.", "Mrs.", "Dr.", "Ms.", "Prof.", "Sr.", "Jr.", "Ph.D", "M.D", "B.A", "M.A", "B.S", "M.S"}

var abbreviationPattern = func() *regexp.Regexp {
	quoted := make([]string, len(abbreviations))
	for i, a := range abbreviations {
		quoted[i] = regexp.QuoteMeta(a)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)`)
}()

type sentence struct {
	opts Options
}

func (s *sentence) Type() docModel.StrategyType { return docModel.Sentence }

func (s *sentence) Chunk(text string) []commonModels.TextChunk {
	runes := []rune(text)
	spans := pack(sentenceSpans(text), s.opts.maxSize(), s.opts.ChunkOverlap)
	return emit(runes, spans, s.opts.MinChunkSize)
}

// maskAbbreviations swaps the dots of known abbreviations for maskRune.
// Both are single byte runes so offsets are unchanged.
func maskAbbreviations(text string) string {
	return abbreviationPattern.ReplaceAllStringFunc(text, func(m string) string {
		return strings.ReplaceAll(m, ".", string(maskRune))
	})
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// sentenceSpans returns rune spans of sentences, leading whitespace excluded.
func sentenceSpans(text string) []span {
	runes := []rune(maskAbbreviations(text))
	n := len(runes)

	var spans []span
	start := -1
	for i := 0; i < n; i++ {
		if start < 0 {
			if unicode.IsSpace(runes[i]) {
				continue
			}
			start = i
		}
		if !isTerminal(runes[i]) {
			continue
		}
		end := i + 1
		for end < n && (isTerminal(runes[end]) || runes[end] == '"' || runes[end] == '\'' || runes[end] == ')') {
			end++
		}
		if end == n || unicode.IsSpace(runes[end]) {
			spans = append(spans, span{start, end})
			start = -1
			i = end - 1
		}
	}
	if start >= 0 {
		end := n
		for end > start && unicode.IsSpace(runes[end-1]) {
			end--
		}
		spans = append(spans, span{start, end})
	}
	return spans
}
