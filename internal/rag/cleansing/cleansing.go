package cleansing

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/pkg/logger_i"
)

var logger = logger_i.NewLogger("Cleansing")

type Cleanser interface {
	Cleanse(ctx context.Context, text string, cfg docModel.CleansingConfig) (string, error)
	CleanseChunks(ctx context.Context, texts []string, cfg docModel.CleansingConfig) ([]string, error)
}

// Basic applies the rule based steps in a fixed order:
// encoding, headers, footers, page numbers, urls, emails, custom rules, whitespace.
type Basic struct{}

func NewBasic() *Basic {
	return &Basic{}
}

func (b *Basic) Cleanse(_ context.Context, text string, cfg docModel.CleansingConfig) (string, error) {
	rules, err := compileRules(cfg.CustomRules)
	if err != nil {
		return "", err
	}
	return b.apply(text, cfg, rules), nil
}

func (b *Basic) CleanseChunks(_ context.Context, texts []string, cfg docModel.CleansingConfig) ([]string, error) {
	rules, err := compileRules(cfg.CustomRules)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = b.apply(t, cfg, rules)
	}
	return out, nil
}

type compiledRule struct {
	re          *regexp.Regexp
	replacement string
}

func compileRules(rules []docModel.CustomRule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, ragErrors.NewCleansingError(ragErrors.InvalidRule, fmt.Sprintf("custom rule %d has an invalid pattern %q", i, r.Pattern), err)
		}
		out = append(out, compiledRule{re: re, replacement: r.Replacement})
	}
	return out, nil
}

func (b *Basic) apply(text string, cfg docModel.CleansingConfig, rules []compiledRule) string {
	if cfg.FixEncoding {
		text = FixEncoding(text)
	}
	if cfg.NormalizeWhitespace {
		text = lineEndings.Replace(text)
	}
	// removal steps only delete text, so repeating them until nothing changes terminates
	for {
		stripped := strip(text, cfg)
		if stripped == text {
			break
		}
		text = stripped
	}
	for _, r := range rules {
		text = r.re.ReplaceAllString(text, r.replacement)
	}
	if cfg.NormalizeWhitespace {
		text = NormalizeWhitespace(text)
	}
	return text
}

func strip(text string, cfg docModel.CleansingConfig) string {
	if cfg.RemoveHeaders {
		text = RemoveHeaders(text)
	}
	if cfg.RemoveFooters {
		text = RemoveFooters(text)
	}
	if cfg.RemovePageNumbers {
		text = RemovePageNumbers(text)
	}
	if cfg.RemoveUrls {
		text = urlPattern.ReplaceAllString(text, "")
	}
	if cfg.RemoveEmails {
		text = emailPattern.ReplaceAllString(text, "")
	}
	return text
}

// FixEncoding repairs common mojibake and drops control characters other than \n, \r and \t.
// A repair can expose another broken sequence, so replacement repeats until the text is stable.
func FixEncoding(text string) string {
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
	for {
		fixed := mojibake.Replace(text)
		if fixed == text {
			return text
		}
		text = fixed
	}
}

// RemoveHeaders blanks header lines among the first non-blank lines of text.
func RemoveHeaders(text string) string {
	lines := strings.Split(text, "\n")
	scanEdge(lines, 0, 1)
	return strings.Join(lines, "\n")
}

// RemoveFooters blanks footer lines among the last non-blank lines of text.
func RemoveFooters(text string) string {
	lines := strings.Split(text, "\n")
	scanEdge(lines, len(lines)-1, -1)
	return strings.Join(lines, "\n")
}

// scanEdge walks HeaderFooterScanLines non-blank lines from start and stops early at a long line.
// Blank lines are not counted, so collapsing whitespace never moves a line into the window.
func scanEdge(lines []string, start, step int) {
	seen := 0
	for i := start; i >= 0 && i < len(lines) && seen < config.HeaderFooterScanLines; i += step {
		// compared with runs of whitespace collapsed, as NormalizeWhitespace leaves them
		line := strings.Join(strings.Fields(lines[i]), " ")
		if line == "" {
			continue
		}
		seen++
		if len([]rune(line)) > config.HeaderFooterMaxLength {
			return
		}
		if isHeaderFooter(line) {
			lines[i] = ""
		}
	}
}

func RemovePageNumbers(text string) string {
	for _, p := range pageNumberPatterns {
		text = p.ReplaceAllString(text, "")
	}
	return text
}

// NormalizeWhitespace is idempotent.
func NormalizeWhitespace(text string) string {
	text = lineEndings.Replace(text)
	text = strings.ReplaceAll(text, "\t", "    ")
	text = multiSpace.ReplaceAllString(text, " ")
	text = trailingSpace.ReplaceAllString(text, "\n")
	text = excessNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
