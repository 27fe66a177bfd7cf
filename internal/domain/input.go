package domain

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/text/unicode/norm"
)

//go:embed input_schema.json
var inputSchemaJSON string

var (
	inputSchemaOnce sync.Once
	inputSchema     *gojsonschema.Schema
	inputSchemaErr  error
)

func loadInputSchema() (*gojsonschema.Schema, error) {
	inputSchemaOnce.Do(func() {
		inputSchema, inputSchemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(inputSchemaJSON))
	})
	return inputSchema, inputSchemaErr
}

// NormalizeInput trims and NFC-normalizes the template id and every string
// field so equivalent user input is stored identically.
func NormalizeInput(spec InputSpec) InputSpec {
	out := InputSpec{
		TemplateID: norm.NFC.String(strings.TrimSpace(spec.TemplateID)),
		Fields:     make(map[string]any, len(spec.Fields)),
	}
	for k, v := range spec.Fields {
		if s, ok := v.(string); ok {
			out.Fields[k] = norm.NFC.String(strings.TrimSpace(s))
			continue
		}
		out.Fields[k] = v
	}
	if spec.Fields == nil {
		out.Fields = nil
	}
	for _, key := range spec.AssetKeys {
		out.AssetKeys = append(out.AssetKeys, strings.TrimSpace(key))
	}
	return out
}

// ValidateInput checks the encoded spec against the input schema. Failures
// wrap ErrInvalidInput and list every offending field.
func ValidateInput(raw []byte) error {
	schema, err := loadInputSchema()
	if err != nil {
		return fmt.Errorf("load input schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}
