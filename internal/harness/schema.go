package harness

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce  sync.Once
	schemaCtx   *cue.Context
	schemaValue cue.Value
	schemaErr   error
)

func scenarioSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile scenario schema: %w", err)
			return
		}
		schemaValue = v.LookupPath(cue.ParsePath("#Scenario"))
		schemaErr = schemaValue.Err()
	})
	return schemaCtx, schemaValue, schemaErr
}

// ValidateSchema checks scenario YAML against the embedded CUE schema.
// The first violation is returned as a *SchemaError carrying its position.
func ValidateSchema(filename string, data []byte) error {
	ctx, schema, err := scenarioSchema()
	if err != nil {
		return err
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return formatCUEError(err)
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return formatCUEError(err)
	}

	if err := schema.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// SchemaError is a schema violation with source position.
type SchemaError struct {
	Message string
	Pos     token.Pos
}

func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	for _, pos := range errors.Positions(first) {
		// Prefer a position in the scenario over one in the schema.
		if pos.Filename() != "schema.cue" {
			return &SchemaError{Message: first.Error(), Pos: pos}
		}
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		return &SchemaError{Message: first.Error(), Pos: positions[0]}
	}
	return &SchemaError{Message: first.Error()}
}
