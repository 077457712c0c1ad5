package compose

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies composition failures. Kind itself implements error, so
// callers can test for a class of failures with errors.Is(err, MalformedInput).
type Kind string

const (
	// MalformedInput - invalid JSON text or JSON of unexpected shape.
	MalformedInput Kind = "malformed input"
	// MissingRequired - required file is absent. Only version descriptor
	// falls here and it degrades to default value.
	MissingRequired Kind = "missing required"
	// MissingOptional - absent extension overlay, silently skipped.
	MissingOptional Kind = "missing optional"
	// FilesystemAccess - unreadable directory or file.
	FilesystemAccess Kind = "filesystem access"
	// AmbiguousExtensionPath - extension search path which is not a directory.
	AmbiguousExtensionPath Kind = "ambiguous extension path"
	// IncludeCycle - include chain re-enters a fragment still being resolved.
	IncludeCycle Kind = "include cycle"
)

func (k Kind) Error() string {
	return string(k)
}

// Fatal reports if failure of this kind aborts resolution.
func (k Kind) Fatal() bool {
	switch k {
	case MissingRequired, MissingOptional, AmbiguousExtensionPath:
		return false
	}
	return true
}

// Error describes failure to compose schema. Path is relative to the schema
// home.
type Error struct {
	Kind  Kind
	Path  string
	Chain []string // include chain, only for IncludeCycle
	Err   error
}

func newError(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if len(e.Path) > 0 {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	if len(e.Chain) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Chain, " -> "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return k == e.Kind
	}
	return false
}

// KindOf returns kind of composition error or empty string when err is not
// one.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
