package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ValueType is a WebAssembly value type as written by the converter.
type ValueType string

const (
	ValueTypeI32       ValueType = "i32"
	ValueTypeI64       ValueType = "i64"
	ValueTypeF32       ValueType = "f32"
	ValueTypeF64       ValueType = "f64"
	ValueTypeV128      ValueType = "v128"
	ValueTypeFuncRef   ValueType = "funcref"
	ValueTypeExternRef ValueType = "externref"

	// ValueTypeEither marks an expected value with several acceptable
	// alternatives.
	ValueTypeEither ValueType = "either"
)

const (
	NaNCanonical  = "nan:canonical"
	NaNArithmetic = "nan:arithmetic"
	nullRef       = "null"
)

var (
	ErrUnknownValueType = errors.New("unknown value type")
	ErrNoValue          = errors.New("value has no literal")
)

// Value is an argument or expected result inside a command.
type Value struct {
	Type         ValueType
	LaneType     ValueType // v128 only
	Literal      string    // scalar literal: decimal bit pattern, "null" or a NaN pattern
	Lanes        []string  // v128 lanes
	HasLiteral   bool
	Alternatives []Value // ValueTypeEither only
}

// UnmarshalJSON decodes both scalar ({"value":"42"}) and vector
// ({"value":["1","2"]}) encodings.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type     ValueType       `json:"type"`
		LaneType ValueType       `json:"lane_type"`
		Value    json.RawMessage `json:"value"`
		Values   []Value         `json:"values"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*v = Value{Type: raw.Type, LaneType: raw.LaneType, Alternatives: raw.Values}
	if len(raw.Value) == 0 || string(raw.Value) == "null" {
		return nil
	}

	v.HasLiteral = true
	switch raw.Value[0] {
	case '[':
		return json.Unmarshal(raw.Value, &v.Lanes)
	case '"':
		return json.Unmarshal(raw.Value, &v.Literal)
	default:
		var n json.Number
		if err := json.Unmarshal(raw.Value, &n); err != nil {
			return fmt.Errorf("value of type %s: %w", raw.Type, err)
		}
		v.Literal = n.String()
		return nil
	}
}

func (v Value) String() string {
	switch {
	case v.Type == ValueTypeEither:
		alts := make([]string, 0, len(v.Alternatives))
		for _, a := range v.Alternatives {
			alts = append(alts, a.String())
		}
		return "either(" + strings.Join(alts, "|") + ")"
	case v.Type == ValueTypeV128:
		return fmt.Sprintf("v128:%s[%s]", v.LaneType, strings.Join(v.Lanes, " "))
	case !v.HasLiteral:
		return string(v.Type)
	default:
		return fmt.Sprintf("%s:%s", v.Type, v.Literal)
	}
}

// IsNaNPattern reports whether the value is one of the NaN patterns rather
// than a concrete bit pattern.
func (v Value) IsNaNPattern() bool {
	return v.Literal == NaNCanonical || v.Literal == NaNArithmetic
}

// Bits returns the bit pattern of a concrete scalar literal.
func (v Value) Bits() (uint64, error) {
	switch v.Type {
	case ValueTypeI32, ValueTypeF32:
		return parseLiteral(v.Literal, 32)
	case ValueTypeI64, ValueTypeF64:
		return parseLiteral(v.Literal, 64)
	case ValueTypeFuncRef, ValueTypeExternRef:
		if !v.HasLiteral {
			return 0, ErrNoValue
		}
		return parseLiteral(v.Literal, 64)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownValueType, v.Type)
	}
}

// IsNull reports whether the value is a null reference.
func (v Value) IsNull() bool {
	return (v.Type == ValueTypeFuncRef || v.Type == ValueTypeExternRef) && v.Literal == nullRef
}

// V128 returns the low and high halves of a vector literal.
func (v Value) V128() (lo, hi uint64, err error) {
	width, err := laneWidth(v.LaneType)
	if err != nil {
		return 0, 0, err
	}
	if len(v.Lanes)*width != 128 {
		return 0, 0, fmt.Errorf("v128 with %d lanes of %s", len(v.Lanes), v.LaneType)
	}
	for i, lane := range v.Lanes {
		bits, err := parseLiteral(lane, width)
		if err != nil {
			return 0, 0, fmt.Errorf("lane %d: %w", i, err)
		}
		setLane(&lo, &hi, i, width, bits)
	}
	return lo, hi, nil
}

// Validate checks that the value can be decoded without touching an engine.
func (v Value) Validate() error {
	switch v.Type {
	case ValueTypeEither:
		if len(v.Alternatives) == 0 {
			return errors.New("either without alternatives")
		}
		for _, a := range v.Alternatives {
			if err := a.Validate(); err != nil {
				return err
			}
		}
		return nil
	case ValueTypeV128:
		width, err := laneWidth(v.LaneType)
		if err != nil {
			return err
		}
		for i, lane := range v.Lanes {
			if isFloatLane(v.LaneType) && (lane == NaNCanonical || lane == NaNArithmetic) {
				continue
			}
			if _, err := parseLiteral(lane, width); err != nil {
				return fmt.Errorf("lane %d: %w", i, err)
			}
		}
		return nil
	case ValueTypeF32, ValueTypeF64:
		if v.IsNaNPattern() {
			return nil
		}
		_, err := v.Bits()
		return err
	case ValueTypeI32, ValueTypeI64:
		_, err := v.Bits()
		return err
	case ValueTypeFuncRef, ValueTypeExternRef:
		if !v.HasLiteral || v.IsNull() {
			return nil
		}
		_, err := v.Bits()
		return err
	default:
		return fmt.Errorf("%w: %s", ErrUnknownValueType, v.Type)
	}
}

func parseLiteral(s string, width int) (uint64, error) {
	if s == "" {
		return 0, ErrNoValue
	}
	if u, err := strconv.ParseUint(s, 10, width); err == nil {
		return u, nil
	}
	i, err := strconv.ParseInt(s, 10, width)
	if err != nil {
		return 0, fmt.Errorf("invalid %d-bit literal %q", width, s)
	}
	return uint64(i) & mask(width), nil
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}

func laneWidth(t ValueType) (int, error) {
	switch t {
	case "i8":
		return 8, nil
	case "i16":
		return 16, nil
	case ValueTypeI32, ValueTypeF32:
		return 32, nil
	case ValueTypeI64, ValueTypeF64:
		return 64, nil
	default:
		return 0, fmt.Errorf("%w: lane type %q", ErrUnknownValueType, t)
	}
}

func isFloatLane(t ValueType) bool {
	return t == ValueTypeF32 || t == ValueTypeF64
}

func setLane(lo, hi *uint64, i, width int, bits uint64) {
	offset := i * width
	if offset < 64 {
		*lo |= (bits & mask(width)) << offset
		return
	}
	*hi |= (bits & mask(width)) << (offset - 64)
}

func getLane(lo, hi uint64, i, width int) uint64 {
	offset := i * width
	if offset < 64 {
		return (lo >> offset) & mask(width)
	}
	return (hi >> (offset - 64)) & mask(width)
}
