package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema compiles a JSON Schema document lazily, once, and validates decoded JSON values.
type Schema struct {
	doc map[string]any

	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

func NewSchema(doc map[string]any) *Schema {
	return &Schema{doc: doc}
}

func (s *Schema) compile() {
	b, err := json.Marshal(s.doc)
	if err != nil {
		s.err = fmt.Errorf("marshal schema: %w", err)
		return
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		s.err = fmt.Errorf("add schema: %w", err)
		return
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		s.err = fmt.Errorf("compile schema: %w", err)
		return
	}
	s.compiled = schema
}

// Validate checks v, a value produced by encoding/json decoding into any.
func (s *Schema) Validate(v any) error {
	s.once.Do(s.compile)
	if s.err != nil {
		return s.err
	}
	if err := s.compiled.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// ValidateJSON decodes data and validates it.
func (s *Schema) ValidateJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	return s.Validate(v)
}
