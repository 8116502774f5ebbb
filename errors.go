package seqfile

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies the failures an operation can report.
type Kind uint8

const (
	KindUnknown Kind = iota
	// device or permission failure on block read/write
	KindIO
	// a pointer chain revisits an offset or points outside the data region
	KindCorrupted
	// unknown table or field, or an invalid schema
	KindSchema
	// table file shorter than one block
	KindUndersized
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io failure"
	case KindCorrupted:
		return "structural corruption"
	case KindSchema:
		return "schema error"
	case KindUndersized:
		return "undersized file"
	}
	return "unknown"
}

// Error is the error type returned by table operations.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match against the bare kind sentinels (ErrIO, ErrCorrupted, ...).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrIO         = &Error{Kind: KindIO}
	ErrCorrupted  = &Error{Kind: KindCorrupted}
	ErrSchema     = &Error{Kind: KindSchema}
	ErrUndersized = &Error{Kind: KindUndersized}

	ErrRecordTooLarge = errors.New("record does not fit in a data block")
	ErrUnaligned      = errors.New("offset is not block aligned")
	ErrSpanTooLong    = errors.New("span crosses more than one block boundary")
	ErrLocked         = errors.New("table file locked by another process")
	ErrReadOnly       = errors.New("db opened in read-only mode")
)

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func ioErr(op string, err error) error {
	return &Error{Kind: KindIO, Op: op, Err: err}
}

func corruptf(op string, format string, args ...interface{}) error {
	return &Error{Kind: KindCorrupted, Op: op, Err: errors.Errorf(format, args...)}
}

func schemaErr(op string, err error) error {
	return &Error{Kind: KindSchema, Op: op, Err: err}
}

// HookError reports an InsertHook failure after the record was committed to
// the table file. Offset is the committed record offset.
type HookError struct {
	Table  string
	Offset int64
	Err    error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("insert hook for %s (record at %d): %v", e.Table, e.Offset, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }
