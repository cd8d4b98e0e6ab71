package index

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema/fact_unit.schema.json
var unitSchemaJSON []byte

const unitSchemaURL = "https://deadwood.dev/schema/fact_unit.schema.json"

var (
	unitSchemaOnce sync.Once
	unitSchema     *jsonschema.Schema
	unitSchemaErr  error
)

// UnitSchema returns the JSON schema fact units must satisfy, as written.
func UnitSchema() []byte {
	return bytes.Clone(unitSchemaJSON)
}

func compiledUnitSchema() (*jsonschema.Schema, error) {
	unitSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(unitSchemaJSON))
		if err != nil {
			unitSchemaErr = fmt.Errorf("decode unit schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(unitSchemaURL, doc); err != nil {
			unitSchemaErr = fmt.Errorf("add unit schema: %w", err)
			return
		}
		unitSchema, unitSchemaErr = compiler.Compile(unitSchemaURL)
	})
	return unitSchema, unitSchemaErr
}

// validateUnit checks raw JSON against the unit schema.
func validateUnit(data []byte) error {
	schema, err := compiledUnitSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedUnit, err)
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	return nil
}
