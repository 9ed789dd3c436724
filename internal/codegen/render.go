package codegen

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/ir"
)

// RoutineDoc is the serializable description of a routine handed to
// renderers and stored in plan bundles.
type RoutineDoc struct {
	Name      string   `json:"name" cbor:"name"`
	Signature string   `json:"signature" cbor:"signature"`
	Form      string   `json:"form" cbor:"form"`
	Format    string   `json:"format" cbor:"format"`
	Direction string   `json:"direction" cbor:"direction"`
	Ops       []string `json:"ops" cbor:"ops"`
}

// FileDoc groups routines by source file.
type FileDoc struct {
	File     string       `json:"file" cbor:"file"`
	Withheld bool         `json:"withheld,omitempty" cbor:"withheld,omitempty"`
	Routines []RoutineDoc `json:"routines" cbor:"routines"`
}

// TargetDoc is one target's output.
type TargetDoc struct {
	Target string    `json:"target" cbor:"target"`
	Error  string    `json:"error,omitempty" cbor:"error,omitempty"`
	Files  []FileDoc `json:"files" cbor:"files"`
}

// PlanDoc is the serializable form of a Plan.
type PlanDoc struct {
	PlanVersion      string            `json:"plan_version" cbor:"plan_version"`
	GeneratorVersion string            `json:"generator_version" cbor:"generator_version"`
	Terminal         bool              `json:"terminal,omitempty" cbor:"terminal,omitempty"`
	Targets          []TargetDoc       `json:"targets" cbor:"targets"`
	Diagnostics      []diag.Diagnostic `json:"diagnostics" cbor:"diagnostics"`
}

// Doc describes a routine.
func (r *Routine) Doc() RoutineDoc {
	ops := make([]string, len(r.Ops))
	for i, op := range r.Ops {
		ops[i] = op.String()
	}
	return RoutineDoc{
		Name:      r.Name,
		Signature: r.Signature(),
		Form:      r.Form.Name,
		Format:    string(r.Format),
		Direction: r.Direction.String(),
		Ops:       ops,
	}
}

// Doc converts the plan to its serializable form. Withheld files keep
// their names but carry no routines.
func (p *Plan) Doc() *PlanDoc {
	doc := &PlanDoc{
		PlanVersion:      ir.PlanVersion,
		GeneratorVersion: ir.GeneratorVersion,
		Terminal:         p.Terminal,
		Diagnostics:      p.Diagnostics,
	}
	if doc.Diagnostics == nil {
		doc.Diagnostics = []diag.Diagnostic{}
	}
	for _, t := range p.Targets {
		td := TargetDoc{Target: t.Target, Files: []FileDoc{}}
		if t.Err != nil {
			td.Error = t.Err.Error()
		}
		for _, f := range t.Files {
			fd := FileDoc{File: f.File, Withheld: f.Withheld, Routines: []RoutineDoc{}}
			if !f.Withheld {
				for _, r := range f.Routines {
					fd.Routines = append(fd.Routines, r.Doc())
				}
			}
			td.Files = append(td.Files, fd)
		}
		doc.Targets = append(doc.Targets, td)
	}
	return doc
}

// Render writes routines as indented text, one operation per line.
func Render(routines []*Routine) string {
	var sb strings.Builder
	for i, r := range routines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(r.Signature() + "\n")
		for _, op := range r.Ops {
			fmt.Fprintf(&sb, "  %s\n", op)
		}
	}
	return sb.String()
}

// CBOR plan bundles use Core Deterministic Encoding so identical plans
// produce identical bytes.
var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codegen: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codegen: CBOR decoder initialization failed: " + err.Error())
	}
}

// MarshalCBOR encodes a plan document.
func (d *PlanDoc) MarshalCBOR() ([]byte, error) {
	type plain PlanDoc
	return cborEnc.Marshal((*plain)(d))
}

// UnmarshalPlanCBOR decodes a plan document.
func UnmarshalPlanCBOR(data []byte) (*PlanDoc, error) {
	type plain PlanDoc
	var p plain
	if err := cborDec.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	d := PlanDoc(p)
	return &d, nil
}
