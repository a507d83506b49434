package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var (
	// ErrInvalidMessage is returned for frames that are not a JSON object
	// with a string "type"
	ErrInvalidMessage = errors.New("invalid message")

	// ErrUnknownMessage is returned for a well-formed message of an
	// unsupported type
	ErrUnknownMessage = errors.New("unknown message type")
)

const envelopeSchema = `{
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {"type": "string"}
  }
}`

var messageSchemas = map[string]string{
	TypeAuth: `{
  "type": "object",
  "required": ["type", "token"],
  "properties": {
    "token": {"type": "string", "minLength": 1}
  }
}`,
	TypeUpdateLocation: `{
  "type": "object",
  "required": ["type", "location"],
  "properties": {
    "location": {
      "type": "array",
      "items": {"type": "number"},
      "minItems": 2,
      "maxItems": 2
    }
  }
}`,
	TypeGetShared: `{
  "type": "object",
  "required": ["type"]
}`,
}

// MessageParser validates and decodes inbound frames
type MessageParser struct {
	envelope *gojsonschema.Schema
	schemas  map[string]*gojsonschema.Schema
}

// NewMessageParser compiles the message schemas
func NewMessageParser() (*MessageParser, error) {
	envelope, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(envelopeSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile envelope schema: %w", err)
	}

	p := &MessageParser{
		envelope: envelope,
		schemas:  make(map[string]*gojsonschema.Schema, len(messageSchemas)),
	}
	for typ, src := range messageSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s schema: %w", typ, err)
		}
		p.schemas[typ] = schema
	}
	return p, nil
}

// Parse returns one of the Inbound variants
func (p *MessageParser) Parse(data []byte) (Inbound, error) {
	if err := validate(p.envelope, data); err != nil {
		return nil, err
	}

	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	schema, ok := p.schemas[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
	if err := validate(schema, data); err != nil {
		return nil, err
	}

	switch env.Type {
	case TypeAuth:
		var m AuthMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		return m, nil

	case TypeUpdateLocation:
		var m UpdateLocationMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		return m, nil

	case TypeGetShared:
		return GetSharedMessage{Type: TypeGetShared}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
}

func validate(schema *gojsonschema.Schema, data []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidMessage, strings.Join(msgs, "; "))
}
