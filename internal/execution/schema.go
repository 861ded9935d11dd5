package execution

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/JaimeStill/intent/internal/faults"
	"github.com/JaimeStill/intent/internal/steps"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const defaultSchema = "default"

// Schemas validates step input before any workflow state is read.
type Schemas struct {
	byStep map[steps.Step]*jsonschema.Schema
}

// NewSchemas compiles the embedded input schema for every executable step.
// Steps without a dedicated schema share the default one.
func NewSchemas() (*Schemas, error) {
	fallback, err := compileSchema(defaultSchema)
	if err != nil {
		return nil, err
	}

	s := &Schemas{byStep: make(map[steps.Step]*jsonschema.Schema)}
	for _, step := range steps.Executables() {
		if _, err := schemaFS.ReadFile(schemaPath(string(step))); err != nil {
			s.byStep[step] = fallback
			continue
		}
		compiled, err := compileSchema(string(step))
		if err != nil {
			return nil, err
		}
		s.byStep[step] = compiled
	}
	return s, nil
}

// Validate checks input against the step's schema. Empty input is treated as
// an empty object.
func (s *Schemas) Validate(step steps.Step, input json.RawMessage) error {
	schema, ok := s.byStep[step]
	if !ok {
		return faults.Validation(fmt.Sprintf("unknown step %q", step), nil)
	}

	input = bytes.TrimSpace(input)
	if len(input) == 0 || bytes.Equal(input, []byte("null")) {
		input = json.RawMessage("{}")
	}

	var v any
	if err := json.Unmarshal(input, &v); err != nil {
		return faults.Validation("input is not valid JSON", err)
	}
	if err := schema.Validate(v); err != nil {
		return faults.Validation(fmt.Sprintf("invalid %s input", step), err)
	}
	return nil
}

func schemaPath(name string) string {
	return "schemas/" + name + ".json"
}

func compileSchema(name string) (*jsonschema.Schema, error) {
	b, err := schemaFS.ReadFile(schemaPath(name))
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name+".json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	schema, err := c.Compile(name + ".json")
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}
