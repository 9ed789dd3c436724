package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/idlc/internal/attr"
	"github.com/roach88/idlc/internal/codegen"
	"github.com/roach88/idlc/internal/compiler"
	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/ir"
	"github.com/roach88/idlc/internal/tag"
	"github.com/roach88/idlc/internal/value"
	"github.com/roach88/idlc/internal/wire"
)

// Harness runs scenarios against one compiled schema.
// Each run gets its own diagnostics sink so configuration errors are
// attributed to the scenario that raised them.
type Harness struct {
	schema *compiler.Schema
	acc    attr.Accessor
	hooks  *wire.Hooks
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*config)

type config struct {
	acc    attr.Accessor
	hooks  *wire.Hooks
	logger *slog.Logger
}

// WithHooks registers custom codecs used by forms with pack/parse attributes.
func WithHooks(h *wire.Hooks) Option {
	return func(c *config) { c.hooks = h }
}

// WithAccessor replaces the schema's attributes, e.g. with an overlay
// layered over them.
func WithAccessor(acc attr.Accessor) Option {
	return func(c *config) { c.acc = acc }
}

// WithLogger sets the logger. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// New creates a harness for schema.
func New(schema *compiler.Schema, opts ...Option) *Harness {
	cfg := &config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(cfg)
	}
	h := &Harness{schema: schema, acc: cfg.acc, hooks: cfg.hooks, logger: cfg.logger}
	if h.acc == nil {
		h.acc = schema.Attrs
	}
	return h
}

func (h *Harness) newMachine() (*wire.Machine, *diag.Sink) {
	sink := diag.NewSink(0)
	r := tag.NewResolver(h.acc, sink, tag.WithCache(tag.NewCache()))
	return wire.NewMachine(codegen.NewGenerator(r), h.hooks), sink
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Parse the scenario type against the schema
// 2. Decode the input document into a value
// 3. Encode the value per expectation, compare, decode back
// 4. Evaluate assertions
//
// An error is returned only when the scenario cannot be executed at all
// (unknown type); failed checks are reported in the result.
func (h *Harness) Run(scenario *Scenario) (*Result, error) {
	typ, err := compiler.ParseType(scenario.Type, h.schema.Graph, nil)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	m, sink := h.newMachine()
	result := NewResult()

	in, err := ir.ParseFormat(scenario.Input.Format)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: input: %w", scenario.Name, err)
	}
	data, err := scenario.Input.Bytes()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: input: %w", scenario.Name, err)
	}
	v, err := m.Decode(typ, in, data)
	if err != nil {
		result.AddError(fmt.Sprintf("input: %v", err))
		reportConfig(sink, result)
		return result, nil
	}
	result.Value = value.Format(v)

	c := &checker{m: m, typ: typ, v: v}
	for i, d := range scenario.Expect {
		got, err := c.expectEncoding(d)
		if got != nil {
			result.AddEncoding(d.Format, got)
		}
		if err != nil {
			result.AddError(fmt.Sprintf("expect[%d]: %v", i, err))
		}
		h.logger.Debug("expectation checked",
			"scenario", scenario.Name,
			"format", d.Format,
			"ok", err == nil,
		)
	}

	for _, msg := range c.EvaluateAssertions(scenario.Assertions) {
		result.AddError(msg)
	}
	reportConfig(sink, result)

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"type", scenario.Type,
		"pass", result.Pass,
		"errors", len(result.Errors),
	)
	return result, nil
}

// reportConfig surfaces configuration errors raised while generating
// routines (a disabled format, an asymmetric custom codec).
func reportConfig(sink *diag.Sink, result *Result) {
	for _, d := range sink.Diagnostics() {
		if d.Severity == diag.SeverityError {
			result.AddError(d.Error())
		}
	}
}

// RunFile loads a scenario file and runs it against the schema the
// scenario names.
func RunFile(path string, opts ...Option) (*Scenario, *Result, error) {
	scenario, err := LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	if scenario.Schema == "" {
		return scenario, nil, fmt.Errorf("scenario %s: no schema given", scenario.Name)
	}
	loaded, err := compiler.Load(scenario.Schema)
	if err != nil {
		return scenario, nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	result, err := New(loaded.Schema, opts...).Run(scenario)
	return scenario, result, err
}
