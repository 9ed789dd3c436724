package harness

import "encoding/hex"

// Encoding is one encoded form of the scenario value, as observed.
type Encoding struct {
	Format string `json:"format"`
	// Data is the encoded text, or hex digits for binary.
	Data string `json:"data"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if every expectation and assertion holds.
	Pass bool `json:"pass"`

	// Value is the decoded input, rendered with value.Format.
	Value string `json:"value"`

	// Encodings holds every encoding produced, in expectation order.
	// Used for golden comparison.
	Encodings []Encoding `json:"encodings"`

	// Errors contains failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Encodings: []Encoding{},
		Errors:    []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEncoding records an encoding produced by the scenario.
func (r *Result) AddEncoding(format string, data []byte) {
	r.Encodings = append(r.Encodings, Encoding{Format: format, Data: render(format, data)})
}

func render(format string, data []byte) string {
	if format == "binary" {
		return hex.EncodeToString(data)
	}
	return string(data)
}
