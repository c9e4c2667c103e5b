package domain

import (
	"fmt"
	"time"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeDocumentDecode   = "DOCUMENT_DECODE_ERROR"
	ErrCodeChunking         = "CHUNKING_ERROR"
	ErrCodeEmbedding        = "EMBEDDING_SERVICE_ERROR"
	ErrCodeIndexPersistence = "INDEX_PERSISTENCE_ERROR"
	ErrCodePromptBuild      = "PROMPT_BUILD_ERROR"
	ErrCodeLLMTimeout       = "LLM_TIMEOUT"
	ErrCodeLLMUnavailable   = "LLM_UNAVAILABLE"
	ErrCodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	ErrCodeToolValidation   = "TOOL_VALIDATION_ERROR"
	ErrCodeAudit            = "AUDIT_ERROR"
)

// Input validation errors
var (
	ErrEmptyQuery           = NewDomainError(ErrCodeValidation, "query must not be empty")
	ErrQueryTooLong         = NewDomainError(ErrCodeValidation, "query exceeds the maximum allowed length")
	ErrEmptyDocument        = NewDomainError(ErrCodeValidation, "document text must not be empty")
	ErrDocumentTooLarge     = NewDomainError(ErrCodeValidation, "document exceeds the maximum allowed size")
	ErrUnsupportedMediaType = NewDomainError(ErrCodeValidation, "unsupported document media type")
	ErrMissingDocumentName  = NewDomainError(ErrCodeValidation, "document name is required")
)

// Ingestion errors
var (
	ErrDocumentDecode   = NewDomainError(ErrCodeDocumentDecode, "document content could not be decoded as text")
	ErrChunkConfig      = NewDomainError(ErrCodeChunking, "overlap must be smaller than the maximum chunk size")
	ErrNothingToChunk   = NewDomainError(ErrCodeChunking, "document text is empty")
	ErrTooManyChunks    = NewDomainError(ErrCodeChunking, "document produces more chunks than allowed")
	ErrWrongDimensions  = NewDomainError(ErrCodeEmbedding, "embedding has unexpected dimensionality")
	ErrEmbeddingService = NewDomainError(ErrCodeEmbedding, "embedding service request failed")
	ErrIndexPersistence = NewDomainError(ErrCodeIndexPersistence, "vector index operation failed")
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found in the index")
)

// Query path errors
var (
	ErrPromptBudget   = NewDomainError(ErrCodePromptBuild, "prompt budget must be positive")
	ErrLLMTimeout     = NewDomainError(ErrCodeLLMTimeout, "language model did not answer within the configured timeout")
	ErrLLMUnavailable = NewDomainError(ErrCodeLLMUnavailable, "language model endpoint is unreachable")
	ErrRateLimited    = NewDomainError(ErrCodeRateLimited, "rate limit exceeded for this session")
)

// Tool sandbox errors
var (
	ErrUnknownTool       = NewDomainError(ErrCodeToolValidation, "tool is not in the registered set")
	ErrInvalidToolArgs   = NewDomainError(ErrCodeToolValidation, "tool arguments failed schema validation")
	ErrExpressionTooLong = NewDomainError(ErrCodeToolValidation, "expression exceeds the maximum allowed length")
	ErrForbiddenToken    = NewDomainError(ErrCodeToolValidation, "expression contains characters outside the arithmetic grammar")
	ErrDivisionByZero    = NewDomainError(ErrCodeToolValidation, "division by zero")
)

// Session and audit errors
var (
	ErrInvalidSessionToken = NewDomainError(ErrCodeUnauthorized, "invalid session token")
	ErrSessionExpired      = NewDomainError(ErrCodeUnauthorized, "session has expired")
	ErrAuditAppend         = NewDomainError(ErrCodeAudit, "audit log append failed")
)

// RateLimitError is the denial returned once a session exhausts its
// budget for an action. RetryAfter tells the caller when the window
// rolls over.
type RateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("[%s] rate limit exceeded, retry in %s", ErrCodeRateLimited, e.RetryAfter.Round(time.Second))
}

// Unwrap ties the denial to ErrRateLimited for errors.Is checks.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}
