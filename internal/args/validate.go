package args

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/harborseal/harborseal/internal/errorsx"
)

// toolSchema is the subset of JSON Schema the validator understands:
// an object with named properties of primitive or array type, plus a
// required list. Providers declaring richer schemas still work; the
// extra constraints are simply not checked here.
type toolSchema struct {
	Type       string                `json:"type"`
	Properties map[string]propSchema `json:"properties"`
	Required   []string              `json:"required"`
}

type propSchema struct {
	Type  string      `json:"type"`
	Items *propSchema `json:"items"`
}

// Validate checks a decoded argument object against the tool's declared
// input schema. Missing required properties and type mismatches are decode
// errors. Properties the schema does not mention pass through untouched.
// A schema that is empty or itself unparsable validates nothing; the
// provider owns its own final say on such tools.
func Validate(v Value, rawSchema json.RawMessage) error {
	if v.Kind != KindObject {
		return errorsx.Wrap(fmt.Errorf("arguments must be a JSON object, got %s", v.Kind), errorsx.ReasonDecode)
	}
	if len(rawSchema) == 0 {
		return nil
	}
	var schema toolSchema
	if err := json.Unmarshal(rawSchema, &schema); err != nil {
		return nil
	}

	for _, name := range schema.Required {
		prop, present := v.Object[name]
		if !present || prop.Kind == KindNull {
			return errorsx.Wrap(fmt.Errorf("missing required argument %q", name), errorsx.ReasonDecode)
		}
	}

	for name, prop := range schema.Properties {
		val, present := v.Object[name]
		if !present || val.Kind == KindNull {
			continue
		}
		if err := checkType(name, val, prop); err != nil {
			return errorsx.Wrap(err, errorsx.ReasonDecode)
		}
	}
	return nil
}

func checkType(name string, v Value, prop propSchema) error {
	switch prop.Type {
	case "", "any":
		return nil
	case "string":
		if v.Kind != KindString {
			return typeMismatch(name, "string", v.Kind)
		}
	case "boolean":
		if v.Kind != KindBool {
			return typeMismatch(name, "boolean", v.Kind)
		}
	case "number":
		if v.Kind != KindNumber {
			return typeMismatch(name, "number", v.Kind)
		}
	case "integer":
		if v.Kind != KindNumber {
			return typeMismatch(name, "integer", v.Kind)
		}
		if v.Number != math.Trunc(v.Number) {
			return fmt.Errorf("argument %q must be an integer, got %v", name, v.Number)
		}
	case "array":
		if v.Kind != KindArray {
			return typeMismatch(name, "array", v.Kind)
		}
		if prop.Items != nil {
			for i, el := range v.Array {
				if err := checkType(fmt.Sprintf("%s[%d]", name, i), el, *prop.Items); err != nil {
					return err
				}
			}
		}
	case "object":
		if v.Kind != KindObject {
			return typeMismatch(name, "object", v.Kind)
		}
	}
	return nil
}

func typeMismatch(name, want string, got Kind) error {
	return fmt.Errorf("argument %q must be a %s, got %s", name, want, got)
}
