package pool

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed question.schema.json
var questionSchemaJSON []byte

const questionSchemaURL = "schema://pool/question.schema.json"

var (
	schemaOnce     sync.Once
	questionSchema *jsonschema.Schema
	schemaErr      error
)

// compiledSchema compiles the embedded line schema on first use.
func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(questionSchemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("parse question schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(questionSchemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add question schema: %w", err)
			return
		}
		questionSchema, schemaErr = c.Compile(questionSchemaURL)
	})
	return questionSchema, schemaErr
}

// validateLine checks a decoded JSONL object against the line schema.
func validateLine(inst any) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
