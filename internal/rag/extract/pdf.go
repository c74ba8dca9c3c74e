package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/akolanti/GoIngest/internal/domain/commonModels"
	"github.com/dslipak/pdf"
)

var pdfInfoKeys = []string{"Title", "Author", "Subject", "Keywords", "Creator", "Producer", "CreationDate"}

func extractPDF(ctx context.Context, e *Extractor, buf []byte, _ string) (ex extraction, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return extraction{}, fmt.Errorf("failed to open pdf: %w", err)
	}

	numPages := reader.NumPage()
	meta := map[string]any{"pageCount": numPages}
	info := reader.Trailer().Key("Info")
	for _, key := range pdfInfoKeys {
		if v := info.Key(key); !v.IsNull() {
			if s := strings.TrimSpace(v.Text()); s != "" {
				meta[strings.ToLower(key[:1])+key[1:]] = s
			}
		}
	}

	var text strings.Builder
	var pages []commonModels.PageSpan
	offset := 0
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return extraction{meta: meta}, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			logger.Debug("pdf page value is null", "page", i)
			continue
		}

		content, err := protectExtract(ctx, page, e.pageTimeout)
		if err != nil {
			// keep going with the remaining pages
			logger.Error("error parsing pdf page", "page", i, "error", err)
			continue
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}

		if text.Len() > 0 {
			text.WriteString("\n\n")
			offset += 2
		}
		n := utf8.RuneCountInString(content)
		pages = append(pages, commonModels.PageSpan{Number: i, StartIndex: offset, EndIndex: offset + n})
		text.WriteString(content)
		offset += n
	}

	if numPages > 0 && len(pages) == 0 {
		return extraction{meta: meta}, errors.New("no extractable text in pdf")
	}
	return extraction{text: text.String(), pages: pages, meta: meta}, nil
}

func protectExtract(ctx context.Context, page pdf.Page, timeout time.Duration) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resChan <- result{err: fmt.Errorf("page parser panic: %v", r)}
			}
		}()
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()

	select {
	case r := <-resChan:
		return r.content, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(timeout):
		return "", errors.New("page extraction timed out")
	}
}
