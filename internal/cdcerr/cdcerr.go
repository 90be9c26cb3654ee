// Package cdcerr defines the error taxonomy shared by every layer of the
// chunking and indexing engine, from the rolling hash up to the CLI.
package cdcerr

import "fmt"

// Kind classifies an Error so callers can branch on failure mode without
// string-matching messages.
type Kind int

const (
	Unknown Kind = iota
	ConfigError
	IoError
	InvalidMagic
	UnsupportedVersion
	IndexChecksumMismatch
	ChunkIdMismatch
	UnsupportedCompression
	DecompressionFailed
	NotFound
	BackendError
	Timeout
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "config_error"
	case IoError:
		return "io_error"
	case InvalidMagic:
		return "invalid_magic"
	case UnsupportedVersion:
		return "unsupported_version"
	case IndexChecksumMismatch:
		return "index_checksum_mismatch"
	case ChunkIdMismatch:
		return "chunk_id_mismatch"
	case UnsupportedCompression:
		return "unsupported_compression"
	case DecompressionFailed:
		return "decompression_failed"
	case NotFound:
		return "not_found"
	case BackendError:
		return "backend_error"
	case Timeout:
		return "timeout"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is a typed, wrapped error carrying enough context (operation,
// optional chunk id and offset) to make failures diagnosable without
// re-deriving them from a bare message.
type Error struct {
	Kind    Kind
	Op      string // the operation that failed, e.g. "chunker.Next"
	ChunkID string // hex chunk id, when relevant
	Offset  int64  // byte offset, when relevant; -1 if not applicable
	Err     error  // wrapped cause, may be nil
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.ChunkID != "" {
		msg += fmt.Sprintf(" chunk=%s", e.ChunkID)
	}
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" offset=%d", e.Offset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with no chunk/offset context.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Offset: -1, Err: err}
}

// WithChunk attaches chunk id and offset context to an Error.
func WithChunk(kind Kind, op, chunkIDHex string, offset int64, err error) *Error {
	return &Error{Kind: kind, Op: op, ChunkID: chunkIDHex, Offset: offset, Err: err}
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error.
func KindOf(err error) Kind {
	var e *Error
	if As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// As walks err's chain of single-error Unwrap methods and stores the
// first *Error it finds in target, so callers of this package don't need
// a second import for the common case.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
