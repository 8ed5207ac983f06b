// Package args decodes and validates tool-call arguments. Raw JSON from the
// model stays untouched until it crosses this boundary; anything malformed is
// rejected with a decode-reasoned error, never repaired or coerced.
package args

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/harborseal/harborseal/internal/errorsx"
)

// Kind discriminates the JSON value forms an argument can take.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is one decoded argument value. Only the field matching Kind is set.
type Value struct {
	Kind   Kind
	Bool   bool
	Number float64
	Str    string
	Array  []Value
	Object map[string]Value
}

// Decode parses a raw argument payload into a tagged Value. A tool-call
// payload must be a JSON object; an empty payload decodes to an empty
// object because the wire format omits arguments for zero-parameter tools.
func Decode(raw json.RawMessage) (Value, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Value{Kind: KindObject, Object: map[string]Value{}}, nil
	}
	var parsed any
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return Value{}, errorsx.Wrap(fmt.Errorf("arguments are not valid JSON: %w", err), errorsx.ReasonDecode)
	}
	v := fromAny(parsed)
	if v.Kind != KindObject {
		return Value{}, errorsx.Wrap(fmt.Errorf("arguments must be a JSON object, got %s", v.Kind), errorsx.ReasonDecode)
	}
	return v, nil
}

func fromAny(in any) Value {
	switch t := in.(type) {
	case nil:
		return Value{Kind: KindNull}
	case bool:
		return Value{Kind: KindBool, Bool: t}
	case float64:
		return Value{Kind: KindNumber, Number: t}
	case string:
		return Value{Kind: KindString, Str: t}
	case []any:
		arr := make([]Value, len(t))
		for i, el := range t {
			arr[i] = fromAny(el)
		}
		return Value{Kind: KindArray, Array: arr}
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, el := range t {
			obj[k] = fromAny(el)
		}
		return Value{Kind: KindObject, Object: obj}
	default:
		return Value{Kind: KindNull}
	}
}

// Interface converts the Value back into the plain Go shape the JSON-RPC
// layer serialises (map[string]any, []any, primitives).
func (v Value) Interface() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Number
	case KindString:
		return v.Str
	case KindArray:
		arr := make([]any, len(v.Array))
		for i, el := range v.Array {
			arr[i] = el.Interface()
		}
		return arr
	case KindObject:
		obj := make(map[string]any, len(v.Object))
		for k, el := range v.Object {
			obj[k] = el.Interface()
		}
		return obj
	default:
		return nil
	}
}

// ObjectMap returns the Value as a plain argument map. Only valid for
// object values, which Decode guarantees.
func (v Value) ObjectMap() map[string]any {
	out, _ := v.Interface().(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

// ToStruct decodes a validated argument object into a typed struct using
// weakly-typed field mapping keyed by json tags.
func ToStruct(v Value, out any) error {
	if v.Kind != KindObject {
		return errorsx.Wrap(fmt.Errorf("arguments must be a JSON object, got %s", v.Kind), errorsx.ReasonDecode)
	}
	cfg := &mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonDecode)
	}
	if err := decoder.Decode(v.Interface()); err != nil {
		return errorsx.Wrap(fmt.Errorf("arguments do not fit the expected shape: %w", err), errorsx.ReasonDecode)
	}
	return nil
}
