package graph

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// SchemaError is one field-level violation of the graph document schema.
type SchemaError struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

func (e SchemaError) Error() string {
	return e.Field + ": " + e.Description
}

// ValidateDocument checks an editor JSON document against the graph schema.
// The returned slice is empty when the document conforms.
func ValidateDocument(data []byte) ([]SchemaError, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	var errs []SchemaError
	for _, e := range result.Errors() {
		errs = append(errs, SchemaError{Field: e.Field(), Description: e.Description()})
	}
	return errs, nil
}

// Decode validates data against the schema, decodes it and checks the
// structural invariants. Violations wrap ErrInvalidGraph.
func Decode(data []byte) (Graph, error) {
	errs, err := ValidateDocument(data)
	if err != nil {
		return Graph{}, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}
	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return Graph{}, fmt.Errorf("%w: %s", ErrInvalidGraph, strings.Join(msgs, "; "))
	}
	g, err := ParseJSON(data)
	if err != nil {
		return Graph{}, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}
	if err := g.Validate(); err != nil {
		return Graph{}, err
	}
	return g, nil
}

// DecodeYAML is Decode for YAML documents.
func DecodeYAML(data []byte) (Graph, error) {
	j, err := yamlToJSON(data)
	if err != nil {
		return Graph{}, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}
	return Decode(j)
}

func yamlToJSON(data []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph YAML: %w", err)
	}
	j, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert graph YAML: %w", err)
	}
	return j, nil
}
