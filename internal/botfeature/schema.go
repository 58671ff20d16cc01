package botfeature

import "fmt"

// FieldType is the declared type of one config field.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldBool   FieldType = "bool"
	FieldArray  FieldType = "array"
	FieldObject FieldType = "object"
)

// Field declares one config key. Object fields carry a nested schema; array
// fields declare their element type.
type Field struct {
	Type     FieldType
	Required bool
	Elem     FieldType
	Fields   Schema
}

// Schema is the config contract of a feature type. Validation runs after
// migration, so unknown keys are already pruned; it catches type drift and
// missing required values.
type Schema map[string]Field

// Validate checks a migrated config against the schema.
func (s Schema) Validate(config map[string]interface{}) error {
	for key, field := range s {
		value, ok := config[key]
		if !ok || value == nil {
			if field.Required {
				return fmt.Errorf("config key %q is required", key)
			}
			continue
		}
		if err := validateValue(key, field, value); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(key string, field Field, value interface{}) error {
	switch field.Type {
	case FieldString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("config key %q must be a string", key)
		}
	case FieldBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("config key %q must be a bool", key)
		}
	case FieldNumber:
		switch value.(type) {
		case float64, int, int64:
		default:
			return fmt.Errorf("config key %q must be a number", key)
		}
	case FieldArray:
		items, ok := value.([]interface{})
		if !ok {
			if _, isStrings := value.([]string); isStrings {
				return nil
			}
			return fmt.Errorf("config key %q must be an array", key)
		}
		for i, item := range items {
			if err := validateValue(fmt.Sprintf("%s[%d]", key, i), Field{Type: field.Elem}, item); err != nil {
				return err
			}
		}
	case FieldObject:
		nested, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("config key %q must be an object", key)
		}
		if field.Fields != nil {
			if err := field.Fields.Validate(nested); err != nil {
				return fmt.Errorf("config key %q: %w", key, err)
			}
		}
	default:
		return fmt.Errorf("config key %q has unknown schema type %q", key, field.Type)
	}
	return nil
}
