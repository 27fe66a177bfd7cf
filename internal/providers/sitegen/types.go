package sitegen

import (
	"context"
	"fmt"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderStatic = "static"
)

// Request carries the decoded input of a job.
type Request struct {
	JobID      string
	TemplateID string
	Fields     map[string]any
	AssetKeys  []string
}

// Field returns a string field or an empty string.
func (r Request) Field(name string) string {
	if v, ok := r.Fields[name].(string); ok {
		return v
	}
	return ""
}

// Generator produces a complete HTML document for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// GenerationError describes a failed remote generation call.
type GenerationError struct {
	Provider string
	Reason   string
	Status   int
	Err      error
}

func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("%s generation failed: %s", e.Provider, e.Reason)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GenerationError) Unwrap() error { return e.Err }

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
