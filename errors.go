package pagefold

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the pagefold package. Structured error types
// below unwrap to one of these, so callers can match with errors.Is.
var (
	// ErrMalformedArchive indicates the container's ZIP structure is
	// inconsistent (bad signatures, truncated records, unreadable entries).
	ErrMalformedArchive = errors.New("pagefold: malformed archive")

	// ErrMalformedMarkup indicates chapter markup could not be tokenized
	// (unbalanced tags, structurally invalid byte sequences).
	ErrMalformedMarkup = errors.New("pagefold: malformed markup")

	// ErrInvalidEncoding indicates text content is not valid UTF-8.
	ErrInvalidEncoding = errors.New("pagefold: invalid text encoding")

	// ErrDecompressionFailed indicates a compressed entry's data stream is
	// corrupt or its checksum does not match.
	ErrDecompressionFailed = errors.New("pagefold: decompression failed")

	// ErrNotFound indicates a referenced resource is absent from the archive.
	ErrNotFound = errors.New("pagefold: resource not found in archive")

	// ErrLimitExceeded indicates a configured budget was breached. The
	// concrete breach is carried by LimitError.
	ErrLimitExceeded = errors.New("pagefold: limit exceeded")

	// ErrValidation indicates a strict structural validation failure.
	ErrValidation = errors.New("pagefold: validation failed")

	// ErrSessionFailed indicates a render session entered the failed state
	// and must be discarded or retried with larger budgets.
	ErrSessionFailed = errors.New("pagefold: session failed")
)

// LimitKind identifies which configured budget a LimitError refers to.
type LimitKind string

// Limit kinds reported by LimitError.
const (
	LimitEntries      LimitKind = "entries"
	LimitTotalBytes   LimitKind = "total_bytes"
	LimitEntryBytes   LimitKind = "entry_bytes"
	LimitNavBytes     LimitKind = "nav_bytes"
	LimitCSSBytes     LimitKind = "css_bytes"
	LimitInlineStyle  LimitKind = "inline_style_bytes"
	LimitElementDepth LimitKind = "element_depth"
	LimitTokenBuffer  LimitKind = "token_buffer"
	LimitPageCache    LimitKind = "page_cache"
)

// LimitError reports a budget breach with the observed value and the
// configured cap. Limit errors are always recoverable: the caller may raise
// the relevant budget or skip the unit of work.
type LimitError struct {
	Kind   LimitKind
	Actual int
	Limit  int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("pagefold: %s limit exceeded: %d > %d", e.Kind, e.Actual, e.Limit)
}

// Unwrap makes errors.Is(err, ErrLimitExceeded) match any LimitError.
func (e *LimitError) Unwrap() error { return ErrLimitExceeded }

// limitErr is a construction shorthand used throughout the package.
func limitErr(kind LimitKind, actual, limit int) error {
	return &LimitError{Kind: kind, Actual: actual, Limit: limit}
}

// isLimitError reports whether err carries a budget breach.
func isLimitError(err error) bool {
	return errors.Is(err, ErrLimitExceeded)
}

// MarkupError reports malformed chapter markup with a best-effort byte
// offset into the chapter stream.
type MarkupError struct {
	Offset int64
	Reason string
}

func (e *MarkupError) Error() string {
	return fmt.Sprintf("pagefold: malformed markup at byte %d: %s", e.Offset, e.Reason)
}

// Unwrap makes errors.Is(err, ErrMalformedMarkup) match any MarkupError.
func (e *MarkupError) Unwrap() error { return ErrMalformedMarkup }

// ChapterOutOfBoundsError reports a chapter or page index outside the valid
// range. It signals a caller contract violation, not malformed input.
type ChapterOutOfBoundsError struct {
	Index int
	Count int
}

func (e *ChapterOutOfBoundsError) Error() string {
	return fmt.Sprintf("pagefold: chapter index %d out of bounds (count %d)", e.Index, e.Count)
}
