package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// extractMarkdown keeps the source as text and reads headings from the AST.
func extractMarkdown(_ context.Context, _ *Extractor, buf []byte, _ string) (extraction, error) {
	src := decodeText(buf)
	source := []byte(src)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	meta := map[string]any{}
	headings := 0
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			headings++
			if _, seen := meta["title"]; !seen {
				meta["title"] = strings.TrimSpace(string(h.Text(source)))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return extraction{text: src}, err
	}
	meta["headingCount"] = headings
	return extraction{text: src, meta: meta}, nil
}

// extractCSV renders each row as its fields joined by a space.
func extractCSV(_ context.Context, _ *Extractor, buf []byte, _ string) (extraction, error) {
	r := csv.NewReader(strings.NewReader(decodeText(buf)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var lines []string
	var header []string
	columns := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return extraction{meta: map[string]any{"rowCount": len(lines)}}, err
		}
		if header == nil {
			header = record
		}
		columns = max(columns, len(record))
		lines = append(lines, strings.Join(record, " "))
	}

	meta := map[string]any{"rowCount": len(lines), "columnCount": columns}
	if header != nil {
		meta["header"] = header
	}
	return extraction{text: strings.Join(lines, "\n"), meta: meta}, nil
}

// extractJSON returns the document re-indented with two spaces.
func extractJSON(_ context.Context, _ *Extractor, buf []byte, _ string) (extraction, error) {
	raw := bytes.TrimPrefix(buf, []byte("\xef\xbb\xbf"))
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return extraction{}, fmt.Errorf("invalid json: %w", err)
	}

	meta := map[string]any{}
	var root any
	if err := json.Unmarshal(raw, &root); err == nil {
		switch v := root.(type) {
		case map[string]any:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			meta["rootType"] = "object"
			meta["keys"] = keys
		case []any:
			meta["rootType"] = "array"
			meta["length"] = len(v)
		case string:
			meta["rootType"] = "string"
		case float64:
			meta["rootType"] = "number"
		case bool:
			meta["rootType"] = "boolean"
		default:
			meta["rootType"] = "null"
		}
	}
	return extraction{text: out.String(), meta: meta}, nil
}
