package dispatch

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// envelopeSchema is the shape every webhook body must have before any of
// its events are persisted.
const envelopeSchema = `{
  "type": "object",
  "required": ["events"],
  "properties": {
    "destination": {"type": "string"},
    "events": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type", "source"],
        "properties": {
          "type": {"type": "string", "minLength": 1},
          "webhookEventId": {"type": "string"},
          "timestamp": {"type": "integer"},
          "source": {
            "type": "object",
            "required": ["type"],
            "properties": {
              "type": {"type": "string"},
              "userId": {"type": "string"},
              "groupId": {"type": "string"},
              "roomId": {"type": "string"}
            }
          }
        }
      }
    }
  }
}`

const envelopeSchemaURL = "replydesk://schema/webhook-envelope.json"

// Validator checks raw webhook bodies against the envelope schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the envelope schema.
func NewValidator() (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(envelopeSchema))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(envelopeSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(envelopeSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// Validate parses body and validates it.
func (v *Validator) Validate(body []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	if err := v.schema.Validate(inst); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	return nil
}
