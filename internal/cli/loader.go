package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/idlc/internal/attr"
	"github.com/roach88/idlc/internal/compiler"
	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/store"
)

// Load error codes (E001-E099). Schema validation uses the compiler's
// E1xx codes and generation the diag package's E2xx/W3xx codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build or schema compile failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeAttrs       = "E008" // Attribute overlay unreadable
	ErrCodeStore       = "E009" // Run store error
)

// LoadError represents an error that occurred while loading a schema.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Project is a loaded schema ready for validation and generation.
type Project struct {
	*compiler.Loaded

	// Overlay holds the --attrs attributes; nil without an overlay.
	Overlay *attr.Table

	// Accessor consults the overlay first, then the schema attributes.
	Accessor attr.Accessor

	// Digest identifies the schema sources and overlay for the run store.
	Digest string
}

// LoadProject loads the CUE schema at path and the optional JSONC
// attribute overlay.
func LoadProject(path, attrsPath string) (*Project, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema not found: %s", path), Err: err}
		}
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema: %v", err), Err: err}
	}
	files, err := compiler.FindCUEFiles(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning schema: %v", err), Err: err}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
	}

	loaded, err := compiler.Load(path)
	if err != nil {
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			return nil, &LoadError{Code: ErrCodeBuildFailed, Message: ce.Error(), Err: err}
		}
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error(), Err: err}
	}

	p := &Project{Loaded: loaded, Accessor: loaded.Attrs}
	sources := loaded.Sources
	if attrsPath != "" {
		data, err := os.ReadFile(attrsPath)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeAttrs, Message: fmt.Sprintf("read attribute overlay: %v", err), Err: err}
		}
		overlay, err := attr.ParseOverlay(data)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeAttrs, Message: err.Error(), Err: err}
		}
		p.Overlay = overlay
		p.Accessor = attr.Layered{overlay, loaded.Attrs}

		sources = make(map[string][]byte, len(loaded.Sources)+1)
		for k, v := range loaded.Sources {
			sources[k] = v
		}
		abs, err := filepath.Abs(attrsPath)
		if err != nil {
			abs = attrsPath
		}
		sources[abs] = data
	}
	p.Digest = store.SchemaDigest(sources)
	return p, nil
}

// Check validates the schema and lints every attribute table into sink.
func (p *Project) Check(sink *diag.Sink) []compiler.ValidationError {
	errs := compiler.Validate(p.Schema)
	tables := []*attr.Table{p.Attrs}
	if p.Overlay != nil {
		tables = append(tables, p.Overlay)
	}
	compiler.Lint(p.Graph, sink, tables...)
	return errs
}

// loadErrorCode returns the code of a LoadError or the generic code.
func loadErrorCode(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeGeneric
}
