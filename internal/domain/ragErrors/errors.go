package ragErrors

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DocumentProcessingError codes
	UnsupportedMimeType = "UNSUPPORTED_MIME_TYPE"
	ProcessingFailed    = "PROCESSING_ERROR"
	InvalidChunkOptions = "INVALID_CHUNK_OPTIONS"
	UnknownStrategy     = "UNKNOWN_STRATEGY"
	NotImplemented      = "NOT_IMPLEMENTED"
	CollectionNotFound  = "COLLECTION_NOT_FOUND"
	DimensionMismatch   = "DIMENSION_MISMATCH"
	AlreadyProcessing   = "ALREADY_PROCESSING"
	DocumentNotFound    = "DOCUMENT_NOT_FOUND"

	// CleansingError codes
	MissingAPIKey      = "MISSING_API_KEY"
	LLMCleansingFailed = "LLM_CLEANSING_ERROR"
	InvalidRule        = "INVALID_RULE"

	// EmbeddingError codes
	APIError            = "API_ERROR"
	GenerationFailed    = "GENERATION_ERROR"
	UnsupportedProvider = "UNSUPPORTED_PROVIDER"

	// VectorStoreError codes
	ConnectionFailed      = "CONNECTION_ERROR"
	CollectionExists      = "COLLECTION_EXISTS"
	InvalidCollectionName = "INVALID_COLLECTION_NAME"
	InvalidDocument       = "INVALID_DOCUMENT"
	UnsupportedBackend    = "UNSUPPORTED_BACKEND"
	InvalidIndexOptions   = "INVALID_INDEX_OPTIONS"
)

// ExtractionCode builds the per-extractor code, e.g. PDF_EXTRACTION_ERROR.
func ExtractionCode(tag string) string {
	return fmt.Sprintf("%s_EXTRACTION_ERROR", strings.ToUpper(tag))
}

// OperationCode builds the per-operation vector store code, e.g. SEARCH_ERROR.
func OperationCode(op string) string {
	return fmt.Sprintf("%s_ERROR", strings.ToUpper(op))
}

// Coded is implemented by every component error.
type Coded interface {
	error
	Code() string
	Component() string
}

type codedError struct {
	component string
	code      string
	message   string
	cause     error
}

func (e *codedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *codedError) Code() string      { return e.code }
func (e *codedError) Message() string   { return e.message }
func (e *codedError) Component() string { return e.component }
func (e *codedError) Unwrap() error     { return e.cause }

type ProcessingError struct{ codedError }
type CleansingError struct{ codedError }
type VectorStoreError struct{ codedError }

type EmbeddingError struct {
	codedError
	StatusCode int
	Body       string
}

func NewProcessingError(code, message string, cause error) *ProcessingError {
	return &ProcessingError{codedError{component: "DocumentProcessingError", code: code, message: message, cause: cause}}
}

func NewCleansingError(code, message string, cause error) *CleansingError {
	return &CleansingError{codedError{component: "CleansingError", code: code, message: message, cause: cause}}
}

func NewVectorStoreError(code, message string, cause error) *VectorStoreError {
	return &VectorStoreError{codedError{component: "VectorStoreError", code: code, message: message, cause: cause}}
}

func NewEmbeddingError(code, message string, cause error) *EmbeddingError {
	return &EmbeddingError{codedError: codedError{component: "EmbeddingError", code: code, message: message, cause: cause}}
}

func NewEmbeddingAPIError(status int, body string) *EmbeddingError {
	e := NewEmbeddingError(APIError, fmt.Sprintf("embedding service returned status %d: %s", status, body), nil)
	e.StatusCode = status
	e.Body = body
	return e
}

// CodeOf returns the code of the first coded error in the chain, or "" when none.
func CodeOf(err error) string {
	var c Coded
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}

func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// Describe renders an error the way it is recorded on a failed document.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var c Coded
	if errors.As(err, &c) {
		if m, ok := c.(interface{ Message() string }); ok {
			msg := m.Message()
			if cause := errors.Unwrap(c); cause != nil {
				msg = fmt.Sprintf("%s (%v)", msg, cause)
			}
			return fmt.Sprintf("%s: %s", c.Code(), msg)
		}
		return c.Error()
	}
	return fmt.Sprintf("%s: %s", ProcessingFailed, err.Error())
}
