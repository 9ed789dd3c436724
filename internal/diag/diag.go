// Package diag collects diagnostics produced during tag resolution and codec
// generation.
//
// Three classes exist:
//   - Configuration errors: recorded in the Sink, the offending occurrence
//     is skipped (ErrSkipped), generation continues elsewhere
//   - Warnings: recorded, never block generation
//   - Internal errors: never recorded, returned as *InternalError and abort
//     the current generation unit
package diag

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/idlc/internal/ir"
)

// Severity classifies a diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Code identifies the diagnostic category.
type Code string

// Configuration error codes (E2xx) and warning codes (W3xx).
const (
	CodeDisabledFormat    Code = "E201" // format requested on a form that never enabled it
	CodeAsymmetricCodec   Code = "E202" // only one of pack/parse declared
	CodeFormatMisuse      Code = "E203" // format-specific shape requested on an incompatible form
	CodeInvalidDiscrim    Code = "E204" // variant descendant without a usable discriminant
	CodePatchDescendant   Code = "E205" // patch record used as a variant descendant
	CodeUnknownAttribute  Code = "W301" // attribute name not recognised
	CodeDeprecatedAttr    Code = "W302" // attribute name deprecated
	CodeUnusedFormatFlags Code = "W303" // structural option ignored by the field's shape
	CodeRecursiveRecord   Code = "W304" // record requires a value of its own type
)

// Diagnostic is one reported problem.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     Code     `json:"code"`
	Message  string   `json:"message"`
	Pos      ir.Pos   `json:"pos"`
	Decl     string   `json:"decl,omitempty"`
}

// Error implements the error interface.
func (d Diagnostic) Error() string {
	if d.Pos.IsValid() {
		return fmt.Sprintf("%s: [%s] %s", d.Pos, d.Code, d.Message)
	}
	if d.Decl != "" {
		return fmt.Sprintf("%s: [%s] %s", d.Decl, d.Code, d.Message)
	}
	return fmt.Sprintf("[%s] %s", d.Code, d.Message)
}

// ErrSkipped marks an occurrence whose generation was skipped because a
// configuration error was recorded for it.
var ErrSkipped = errors.New("occurrence skipped after configuration error")

// ConfigError is returned to the caller that triggered a recorded
// configuration error. It unwraps to ErrSkipped.
type ConfigError struct {
	Diagnostic
}

// Unwrap returns ErrSkipped.
func (e *ConfigError) Unwrap() error { return ErrSkipped }

// IsSkipped reports whether err means "skip this occurrence".
func IsSkipped(err error) bool {
	return errors.Is(err, ErrSkipped)
}

// InternalError signals an upstream defect: an unbound generic variable, an
// unhandled type or tag variant. It is never a user mistake.
type InternalError struct {
	Op      string
	Message string
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %s: %s", e.Op, e.Message)
}

// Internalf creates an InternalError.
func Internalf(op, format string, args ...any) *InternalError {
	return &InternalError{Op: op, Message: fmt.Sprintf(format, args...)}
}

// IsInternal reports whether err wraps an InternalError.
func IsInternal(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}

type diagKey struct {
	code Code
	pos  ir.Pos
	decl string
	msg  string
}

// Sink accumulates diagnostics. It is safe for concurrent use.
type Sink struct {
	mu        sync.Mutex
	diags     []Diagnostic
	seen      map[diagKey]bool
	errors    int
	maxErrors int
}

// NewSink creates a sink. maxErrors is the terminal threshold after which
// Terminal reports true; zero disables the threshold.
func NewSink(maxErrors int) *Sink {
	return &Sink{seen: make(map[diagKey]bool), maxErrors: maxErrors}
}

// Report records a diagnostic. Identical reports are recorded once.
func (s *Sink) Report(d Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := diagKey{code: d.Code, pos: d.Pos, decl: d.Decl, msg: d.Message}
	if s.seen[k] {
		return
	}
	s.seen[k] = true
	s.diags = append(s.diags, d)
	if d.Severity == SeverityError {
		s.errors++
	}
}

// Errorf records a configuration error against decl and returns the
// ConfigError the caller should propagate.
func (s *Sink) Errorf(code Code, decl ir.Decl, format string, args ...any) error {
	d := Diagnostic{
		Severity: SeverityError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	}
	if decl != nil {
		d.Pos = decl.Position()
		d.Decl = decl.Path()
	}
	s.Report(d)
	return &ConfigError{Diagnostic: d}
}

// Warnf records a warning against decl.
func (s *Sink) Warnf(code Code, decl ir.Decl, format string, args ...any) {
	d := Diagnostic{
		Severity: SeverityWarning,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	}
	if decl != nil {
		d.Pos = decl.Position()
		d.Decl = decl.Path()
	}
	s.Report(d)
}

// HasErrors reports whether any configuration error was recorded.
func (s *Sink) HasErrors() bool {
	return s.ErrorCount() > 0
}

// ErrorCount returns the number of recorded configuration errors.
func (s *Sink) ErrorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors
}

// Terminal reports whether the error threshold was reached. Output writing
// is withheld for the whole run once it is.
func (s *Sink) Terminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxErrors > 0 && s.errors >= s.maxErrors
}

// Diagnostics returns a snapshot sorted by position, then code and message,
// so concurrent reporting still yields deterministic output.
func (s *Sink) Diagnostics() []Diagnostic {
	s.mu.Lock()
	out := make([]Diagnostic, len(s.diags))
	copy(out, s.diags)
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Pos.File != b.Pos.File {
			return a.Pos.File < b.Pos.File
		}
		if a.Pos.Line != b.Pos.Line {
			return a.Pos.Line < b.Pos.Line
		}
		if a.Pos.Column != b.Pos.Column {
			return a.Pos.Column < b.Pos.Column
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.Decl != b.Decl {
			return a.Decl < b.Decl
		}
		return a.Message < b.Message
	})
	return out
}

// FilesWithErrors returns the source files that carry at least one
// configuration error. Errors without a position are keyed by "".
func (s *Sink) FilesWithErrors() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := make(map[string]bool)
	for _, d := range s.diags {
		if d.Severity == SeverityError {
			files[d.Pos.File] = true
		}
	}
	return files
}
