package cleansing

import (
	"regexp"
	"strings"
)

// mojibake maps UTF-8 text that was decoded as Windows-1252 back to the intended characters.
var mojibake = strings.NewReplacer(
	"\u00e2\u20ac\u2122", "'",
	"\u00e2\u20ac\u02dc", "'",
	"\u00e2\u20ac\u0153", "\"",
	"\u00e2\u20ac\u009d", "\"",
	"\u00e2\u20ac\u201d", "\u2014",
	"\u00e2\u20ac\u201c", "\u2013",
	"\u00e2\u20ac\u00a6", "\u2026",
	"\u00c2\u00a0", " ",
	"\u00c3\u00a9", "\u00e9",
	"\u00c3\u00a8", "\u00e8",
	"\u00c3\u00aa", "\u00ea",
	"\u00c3\u00ab", "\u00eb",
	"\u00c3\u00a1", "\u00e1",
	"\u00c3\u00a0", "\u00e0",
	"\u00c3\u00a2", "\u00e2",
	"\u00c3\u00a4", "\u00e4",
	"\u00c3\u00a7", "\u00e7",
	"\u00c3\u00ad", "\u00ed",
	"\u00c3\u00ae", "\u00ee",
	"\u00c3\u00af", "\u00ef",
	"\u00c3\u00b1", "\u00f1",
	"\u00c3\u00b3", "\u00f3",
	"\u00c3\u00b4", "\u00f4",
	"\u00c3\u00b6", "\u00f6",
	"\u00c3\u00ba", "\u00fa",
	"\u00c3\u00bb", "\u00fb",
	"\u00c3\u00bc", "\u00fc",
	"\u00c3\u2030", "\u00c9",
	"\u00c3\u02c6", "\u00c8",
	"\u00c3\u20ac", "\u00c0",
	"\u00c3\u2021", "\u00c7",
	"\u00c3\u0178", "\u00df",
	"\u00c3\u2013", "\u00d6",
	"\u00c3\u0153", "\u00dc",
	"\u00c3\u201e", "\u00c4",
)

var headerFooterPatterns = []*regexp.Regexp{
	// short all caps lines such as running titles
	regexp.MustCompile(`^[A-Z0-9][A-Z0-9 .,:;&'\-–—|/()]*[A-Z][A-Z0-9 .,:;&'\-–—|/()]*$`),
	regexp.MustCompile(`^\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4}$`),
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
	regexp.MustCompile(`(?i)^(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}$`),
	regexp.MustCompile(`(?i)^\d{1,2}\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{4}$`),
	regexp.MustCompile(`(?i)^(page|chapter|section)\s+\d+`),
	regexp.MustCompile(`(?i)(copyright|©|\(c\)\s*\d{4}|confidential|all rights reserved|proprietary)`),
}

var pageNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^[ \t]*\d+[ \t]*$`),
	regexp.MustCompile(`(?mi)^[ \t]*page[ \t]+\d+([ \t]+of[ \t]+\d+)?[ \t]*$`),
	regexp.MustCompile(`(?m)^[ \t]*\d+[ \t]*/[ \t]*\d+[ \t]*$`),
	regexp.MustCompile(`(?m)^[ \t]*[-–—][ \t]*\d+[ \t]*[-–—][ \t]*$`),
}

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

var (
	urlPattern   = regexp.MustCompile(`(?i)\b(?:https?://|ftp://|www\.)[^\s<>"']+`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	multiSpace     = regexp.MustCompile(` {2,}`)
	trailingSpace  = regexp.MustCompile(` +\n`)
	excessNewlines = regexp.MustCompile(`\n{3,}`)
)

func isHeaderFooter(line string) bool {
	for _, p := range headerFooterPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}
