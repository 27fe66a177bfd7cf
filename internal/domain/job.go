package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusDraft      JobStatus = "draft"
	JobStatusPending    JobStatus = "pending"
	JobStatusGenerating JobStatus = "generating"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is completed or failed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusDraft, JobStatusPending, JobStatusGenerating, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

var transitions = map[JobStatus][]JobStatus{
	JobStatusDraft:      {JobStatusPending},
	JobStatusPending:    {JobStatusGenerating},
	JobStatusGenerating: {JobStatusCompleted, JobStatusFailed},
	JobStatusCompleted:  {JobStatusPending},
	JobStatusFailed:     {JobStatusPending},
}

// CanTransition reports whether a job may move from one status to another.
// Terminal states only lead back to pending through regeneration.
func CanTransition(from, to JobStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PlainTransition reports whether from→to is legal and carries no payload,
// i.e. dispatching a draft or starting generation.
func PlainTransition(from, to JobStatus) bool {
	return CanTransition(from, to) && !from.Terminal() && !to.Terminal()
}

// InputSpec is the payload handed to the content generator.
type InputSpec struct {
	TemplateID string         `json:"template_id"`
	Fields     map[string]any `json:"fields"`
	AssetKeys  []string       `json:"asset_keys,omitempty"`
}

// Field returns a string field or an empty string.
func (s InputSpec) Field(name string) string {
	if s.Fields == nil {
		return ""
	}
	if v, ok := s.Fields[name].(string); ok {
		return v
	}
	return ""
}

// Encode serializes the spec for storage.
func (s InputSpec) Encode() ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode input spec: %w", err)
	}
	return raw, nil
}

// DecodeInputSpec parses a stored input payload.
func DecodeInputSpec(raw []byte) (InputSpec, error) {
	var spec InputSpec
	if len(raw) == 0 {
		return spec, fmt.Errorf("%w: input spec is empty", ErrInvalidInput)
	}
	if err := json.Unmarshal(raw, &spec); err != nil {
		return spec, fmt.Errorf("%w: decode input spec: %v", ErrInvalidInput, err)
	}
	return spec, nil
}

// Job is the persisted record of one generation request.
type Job struct {
	ID                 string
	OwnerID            string
	ProjectName        string
	InputJSON          []byte
	Status             JobStatus
	ResultID           string
	ResultDocument     string
	ErrorDetail        string
	CredentialHash     string
	CredentialConsumed bool
	IsArchived         bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CompletedAt        *time.Time
}

// HasCredential reports whether a download credential is currently stored.
func (j Job) HasCredential() bool {
	return j.Status == JobStatusCompleted && j.CredentialHash != ""
}

// Completion carries everything persisted atomically on entering completed.
type Completion struct {
	ResultID       string
	Document       string
	CredentialHash string
	CompletedAt    time.Time
}
