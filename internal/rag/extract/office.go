package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"code.sajari.com/docconv"
	"github.com/akolanti/GoIngest/internal/domain/commonModels"
	"github.com/lu4p/cat"
)

// extractOffice handles Word and PowerPoint documents through docconv.
func extractOffice(_ context.Context, _ *Extractor, buf []byte, mediaType string) (extraction, error) {
	res, err := docconv.Convert(bytes.NewReader(buf), mediaType, false)
	if err != nil {
		return extraction{}, fmt.Errorf("docconv: %w", err)
	}

	meta := make(map[string]any, len(res.Meta))
	for k, v := range res.Meta {
		if v = strings.TrimSpace(v); v != "" {
			meta[k] = v
		}
	}
	return extraction{text: strings.TrimSpace(res.Body), meta: meta}, nil
}

// extractCat handles ODT and RTF. cat picks the parser from the file extension,
// so the bytes go through a temp file.
func extractCat(_ context.Context, _ *Extractor, buf []byte, mediaType string) (extraction, error) {
	ext := ".odt"
	if ft, _ := commonModels.FileTypeForMediaType(mediaType); ft == commonModels.RTF {
		ext = ".rtf"
	}

	f, err := os.CreateTemp("", "extract-*"+ext)
	if err != nil {
		return extraction{}, err
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(buf); err != nil {
		f.Close()
		return extraction{}, err
	}
	if err := f.Close(); err != nil {
		return extraction{}, err
	}

	text, err := cat.File(f.Name())
	if err != nil {
		return extraction{}, fmt.Errorf("failed to extract %s: %w", strings.TrimPrefix(ext, "."), err)
	}
	return extraction{text: strings.TrimSpace(text)}, nil
}
