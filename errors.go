package tiffcore

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies the errors returned by this package, per the error
// taxonomy required of every Reader/Writer operation.
type Kind int

const (
	// KindNotTiff indicates a missing or mismatched magic/version header.
	KindNotTiff Kind = iota + 1
	// KindMalformedIFD indicates an out-of-range type, duplicate tag,
	// disallowed count, or a predictor/codec combination that the TIFF
	// spec disallows.
	KindMalformedIFD
	// KindUnsupportedCompression indicates no codec is registered for
	// the compression code in tag 259.
	KindUnsupportedCompression
	// KindUnsupportedFormat indicates a bit width or sample format this
	// engine cannot represent.
	KindUnsupportedFormat
	// KindCorruptedData indicates a decoded payload larger than its
	// nominal tile size under a lossless codec, a truncated stream, or
	// predictor misuse.
	KindCorruptedData
	// KindCodecFailure wraps an error returned by a registered codec.
	KindCodecFailure
	// KindResourceLimit indicates expansion beyond a configured cap.
	KindResourceLimit
	// KindIoError wraps an underlying ByteStream I/O failure.
	KindIoError
	// KindCancelled indicates the Reader/Writer was dropped mid-operation.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindNotTiff:
		return "NotTiff"
	case KindMalformedIFD:
		return "MalformedIFD"
	case KindUnsupportedCompression:
		return "UnsupportedCompression"
	case KindUnsupportedFormat:
		return "UnsupportedFormat"
	case KindCorruptedData:
		return "CorruptedData"
	case KindCodecFailure:
		return "CodecFailure"
	case KindResourceLimit:
		return "ResourceLimit"
	case KindIoError:
		return "IoError"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by every fallible operation in
// this package. It carries a Kind so callers can switch on category with
// errors.Is/errors.As, plus an optional wrapped cause.
type Error struct {
	Kind  Kind
	Msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is lets errors.Is(err, ErrNotTiff) (etc.) match on Kind alone, ignoring
// message and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinel values usable with errors.Is, one per Kind, with no message or
// cause of their own - only the Kind is compared.
var (
	ErrNotTiff                = &Error{Kind: KindNotTiff}
	ErrMalformedIFD           = &Error{Kind: KindMalformedIFD}
	ErrUnsupportedCompression = &Error{Kind: KindUnsupportedCompression}
	ErrUnsupportedFormat      = &Error{Kind: KindUnsupportedFormat}
	ErrCorruptedData          = &Error{Kind: KindCorruptedData}
	ErrCodecFailure           = &Error{Kind: KindCodecFailure}
	ErrResourceLimit          = &Error{Kind: KindResourceLimit}
	ErrIoError                = &Error{Kind: KindIoError}
	ErrCancelled              = &Error{Kind: KindCancelled}
)

// newErr builds a fresh *Error of the given kind with a formatted message.
func newErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// wrapErr builds a fresh *Error of the given kind that wraps cause with
// stack context via github.com/pkg/errors, so diagnostics retain the
// original call site even though callers only see a Kind.
func wrapErr(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), cause: errors.WithStack(cause)}
}
