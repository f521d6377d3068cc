package ocpp

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
)

type schemaKey struct {
	Version   Version
	Action    string
	Direction Direction
}

// SchemaValidator validates OCPP payloads against the JSON-Schema documents
// published by the Open Charge Alliance, keyed by version, action and
// direction. Actions without a registered schema pass validation.
type SchemaValidator struct {
	mu      sync.RWMutex
	schemas map[schemaKey]*jsonschema.Schema
	strict  bool
}

// NewSchemaValidator returns an empty validator. When strict is false every
// payload validates.
func NewSchemaValidator(strict bool) *SchemaValidator {
	return &SchemaValidator{
		schemas: make(map[schemaKey]*jsonschema.Schema),
		strict:  strict,
	}
}

// Register compiles and stores a schema document for one (version, action,
// direction) tuple.
func (v *SchemaValidator) Register(ver Version, action string, dir Direction, schemaJSON []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return fmt.Errorf("parse schema for %s/%s: %w", action, dir, err)
	}

	url := fmt.Sprintf("urn:ocpp:%s:%s:%s.json", ver, action, dir)
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		return fmt.Errorf("add schema resource %s: %w", url, err)
	}
	sch, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("compile schema %s: %w", url, err)
	}

	v.mu.Lock()
	v.schemas[schemaKey{ver, action, dir}] = sch
	v.mu.Unlock()
	return nil
}

// Has reports whether a schema is registered for the tuple.
func (v *SchemaValidator) Has(ver Version, action string, dir Direction) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.schemas[schemaKey{ver, action, dir}]
	return ok
}

// Validate checks a raw payload. The returned error, if any, is an *Error
// with the violation code the version mandates on the wire.
func (v *SchemaValidator) Validate(ver Version, action string, dir Direction, payload []byte) error {
	if !v.strict {
		return nil
	}

	v.mu.RLock()
	sch, ok := v.schemas[schemaKey{ver, action, dir}]
	v.mu.RUnlock()
	if !ok {
		return nil
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return NewError(FormatErrorCode(ver), fmt.Sprintf("%s %s payload is not valid JSON", action, dir))
	}
	if err := sch.Validate(inst); err != nil {
		ve, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return NewError(FormatErrorCode(ver), err.Error())
		}
		return NewError(classify(ver, ve), fmt.Sprintf("%s %s: %v", action, dir, ve))
	}
	return nil
}

// classify maps a schema violation to the OCPP error code family: missing or
// extra occurrences of a property, wrong type, or a value constraint.
func classify(ver Version, ve *jsonschema.ValidationError) ErrorCode {
	code := ErrorPropertyConstraintViolation
	var walk func(e *jsonschema.ValidationError) bool
	walk = func(e *jsonschema.ValidationError) bool {
		if len(e.Causes) == 0 {
			switch e.ErrorKind.(type) {
			case *kind.Required, *kind.MinItems, *kind.MaxItems, *kind.AdditionalProperties:
				code = ErrorOccurrenceConstraintViolation
				return true
			case *kind.Type:
				code = ErrorTypeConstraintViolation
				return true
			}
			return false
		}
		for _, c := range e.Causes {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(ve)
	return code
}
