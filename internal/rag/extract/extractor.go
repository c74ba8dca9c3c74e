package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/commonModels"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/pkg/logger_i"
)

var logger = logger_i.NewLogger("Extractor")

// Result is everything pulled out of one file in a single pass.
type Result struct {
	Text        string
	FileType    commonModels.FileType
	Metadata    map[string]any
	Pages       []commonModels.PageSpan
	ContentHash string
}

type extraction struct {
	text  string
	pages []commonModels.PageSpan
	meta  map[string]any
}

type extractFunc func(ctx context.Context, e *Extractor, buf []byte, mediaType string) (extraction, error)

var extractors = map[commonModels.FileType]extractFunc{
	commonModels.PDF:  extractPDF,
	commonModels.DOCX: extractOffice,
	commonModels.DOC:  extractOffice,
	commonModels.PPTX: extractOffice,
	commonModels.PPT:  extractOffice,
	commonModels.ODT:  extractCat,
	commonModels.RTF:  extractCat,
	commonModels.TXT:  extractPlain,
	commonModels.MD:   extractMarkdown,
	commonModels.HTML: extractHTML,
	commonModels.CSV:  extractCSV,
	commonModels.JSON: extractJSON,
}

type Extractor struct {
	pageTimeout time.Duration
}

type Option func(*Extractor)

func WithPageTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.pageTimeout = d
		}
	}
}

func New(opts ...Option) *Extractor {
	e := &Extractor{pageTimeout: config.PdfPageTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ResolveFileType maps a media type (parameters ignored) to its file type.
func ResolveFileType(mediaType string) (commonModels.FileType, error) {
	ft, ok := commonModels.FileTypeForMediaType(baseMediaType(mediaType))
	if !ok {
		return "", ragErrors.NewProcessingError(ragErrors.UnsupportedMimeType, fmt.Sprintf("unsupported media type %q", mediaType), nil)
	}
	return ft, nil
}

func baseMediaType(mediaType string) string {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		mt = strings.TrimSpace(strings.SplitN(mediaType, ";", 2)[0])
	}
	return strings.ToLower(mt)
}

func ContentHash(buf []byte) string {
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

func (e *Extractor) Extract(ctx context.Context, buf []byte, mediaType string) (Result, error) {
	ft, err := ResolveFileType(mediaType)
	if err != nil {
		return Result{}, err
	}
	start := time.Now()
	ex, err := extractors[ft](ctx, e, buf, baseMediaType(mediaType))
	if err != nil {
		logger.Error("extraction failed", "fileType", ft, "error", err)
		return Result{}, ragErrors.NewProcessingError(ragErrors.ExtractionCode(string(ft)), fmt.Sprintf("failed to extract %s text", ft), err)
	}
	logger.Debug("extracted text", "fileType", ft, "chars", utf8.RuneCountInString(ex.text), "took", time.Since(start))

	return Result{
		Text:        ex.text,
		FileType:    ft,
		Metadata:    withCounts(ex.meta, ex.text),
		Pages:       ex.pages,
		ContentHash: ContentHash(buf),
	}, nil
}

func (e *Extractor) ExtractText(ctx context.Context, buf []byte, mediaType string) (string, error) {
	res, err := e.Extract(ctx, buf, mediaType)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// ExtractMetadata never fails; on extraction errors it returns what it could gather.
func (e *Extractor) ExtractMetadata(ctx context.Context, buf []byte, mediaType string) map[string]any {
	ft, err := ResolveFileType(mediaType)
	if err != nil {
		return map[string]any{}
	}
	ex, err := extractors[ft](ctx, e, buf, baseMediaType(mediaType))
	if err != nil {
		logger.Warn("metadata extraction incomplete", "fileType", ft, "error", err)
		if ex.meta == nil {
			return map[string]any{}
		}
		return ex.meta
	}
	return withCounts(ex.meta, ex.text)
}

func withCounts(meta map[string]any, text string) map[string]any {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["charCount"] = utf8.RuneCountInString(text)
	meta["wordCount"] = len(strings.Fields(text))
	lines := 0
	if text != "" {
		lines = strings.Count(text, "\n") + 1
	}
	meta["lineCount"] = lines
	return meta
}

// decodeText turns bytes into valid UTF-8 without a byte order mark.
func decodeText(buf []byte) string {
	s := strings.TrimPrefix(string(buf), "\ufeff")
	return strings.ToValidUTF8(s, "\ufffd")
}

func extractPlain(_ context.Context, _ *Extractor, buf []byte, _ string) (extraction, error) {
	return extraction{text: decodeText(buf)}, nil
}
