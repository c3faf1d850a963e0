package queue

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/inkwell/internal/domain"
)

var validate = validator.New()

// Payload is the task body carried through the queue. It is validated on
// enqueue and again when a worker claims it.
type Payload struct {
	ContentID   uuid.UUID          `json:"contentId"   validate:"required"`
	JobID       uuid.UUID          `json:"jobId"       validate:"required"`
	UserID      uuid.UUID          `json:"userId"      validate:"required"`
	Prompt      string             `json:"prompt"      validate:"required,max=1000"`
	ContentType domain.ContentType `json:"contentType" validate:"required,oneof=blog-post-outline blog-post product-description social-media-caption email-subject-line ad-copy"`
	Provider    domain.Provider    `json:"provider"    validate:"required,oneof=gemini openai"`
	Model       string             `json:"model"       validate:"max=100"`
}

// PayloadFor builds the task payload for the current attempt cycle of job.
func PayloadFor(job *domain.ContentJob) Payload {
	return Payload{
		ContentID:   job.ID,
		JobID:       job.JobID,
		UserID:      job.UserID,
		Prompt:      job.Prompt,
		ContentType: job.ContentType,
		Provider:    job.Provider,
		Model:       job.Model,
	}
}

// Validate checks the payload against its schema.
func (p Payload) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func encodePayload(p Payload) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(p)
}

// decodePayload parses and validates a stored payload. Unknown fields are
// rejected.
func decodePayload(data []byte) (Payload, error) {
	var p Payload
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p, p.Validate()
}
