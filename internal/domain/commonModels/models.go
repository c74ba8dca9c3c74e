package commonModels

import "strings"

type FileType string

const (
	PDF  FileType = "pdf"
	DOCX FileType = "docx"
	DOC  FileType = "doc"
	PPTX FileType = "pptx"
	PPT  FileType = "ppt"
	TXT  FileType = "txt"
	MD   FileType = "md"
	HTML FileType = "html"
	CSV  FileType = "csv"
	JSON FileType = "json"
	ODT  FileType = "odt"
	RTF  FileType = "rtf"
)

// mediaTypes is the single source for the media type -> file type mapping.
var mediaTypes = map[string]FileType{}

// extensions maps a file extension to its canonical media type.
var extensions = map[string]string{}

func init() {
	for _, m := range []struct {
		mediaType string
		fileType  FileType
		exts      []string
	}{
		{"application/pdf", PDF, []string{".pdf"}},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", DOCX, []string{".docx"}},
		{"application/msword", DOC, []string{".doc"}},
		{"application/vnd.openxmlformats-officedocument.presentationml.presentation", PPTX, []string{".pptx"}},
		{"application/vnd.ms-powerpoint", PPT, []string{".ppt"}},
		{"text/plain", TXT, []string{".txt", ".text", ".log"}},
		{"text/markdown", MD, []string{".md", ".markdown"}},
		{"text/x-markdown", MD, nil},
		{"text/html", HTML, []string{".html", ".htm"}},
		{"application/xhtml+xml", HTML, []string{".xhtml"}},
		{"text/csv", CSV, []string{".csv"}},
		{"application/json", JSON, []string{".json"}},
		{"application/vnd.oasis.opendocument.text", ODT, []string{".odt"}},
		{"application/rtf", RTF, []string{".rtf"}},
		{"text/rtf", RTF, nil},
	} {
		mediaTypes[m.mediaType] = m.fileType
		for _, ext := range m.exts {
			extensions[ext] = m.mediaType
		}
	}
}

func FileTypeForMediaType(mediaType string) (FileType, bool) {
	ft, ok := mediaTypes[mediaType]
	return ft, ok
}

// MediaTypeForExtension returns "" for unknown extensions.
func MediaTypeForExtension(ext string) string {
	return extensions[strings.ToLower(ext)]
}

type PageSpan struct {
	Number     int `json:"number"`
	StartIndex int `json:"start_index"`
	EndIndex   int `json:"end_index"`
}

type TextChunk struct {
	Content    string         `json:"content"`
	StartIndex int            `json:"start_index"`
	EndIndex   int            `json:"end_index"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type DocumentChunk struct {
	TextChunk
	Id             string    `json:"id"`
	ChunkIndex     int       `json:"chunk_index"`
	DocumentId     string    `json:"document_id"`
	CleanedContent string    `json:"cleaned_content,omitempty"`
	Embedding      []float32 `json:"-"`
	TokenCount     int       `json:"token_count"`
}

// RetrievalText is what gets embedded and indexed.
func (c DocumentChunk) RetrievalText() string {
	if c.CleanedContent != "" {
		return c.CleanedContent
	}
	return c.Content
}

type SearchResult struct {
	DocumentId   string         `json:"document_id"`
	ChunkId      string         `json:"chunk_id"`
	CollectionId string         `json:"collection_id"`
	Content      string         `json:"content"`
	Score        float32        `json:"score"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}
