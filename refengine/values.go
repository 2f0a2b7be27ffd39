package refengine

import (
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/wasvm/wasm-acceptor/corpus"
)

// valueTypeV128 is not exposed by the api package; wazero cannot pass
// vectors through Function.Call.
const valueTypeV128 api.ValueType = 0x7b

// valueTypeFuncref is the funcref value type byte, which api does not name.
const valueTypeFuncref api.ValueType = 0x70

// errUnsupported marks values this engine cannot pass across the host
// boundary. Assertions hitting it are counted as skipped.
var errUnsupported = errors.New("unsupported value")

// encodeArg converts a manifest argument into wazero's uint64 encoding.
// Extern references are encoded as index+1 so that 0 stays null.
func encodeArg(v corpus.Value) (uint64, error) {
	switch v.Type {
	case corpus.ValueTypeI32, corpus.ValueTypeI64, corpus.ValueTypeF32, corpus.ValueTypeF64:
		if v.IsNaNPattern() {
			return 0, fmt.Errorf("%w: NaN pattern %s as argument", errUnsupported, v.Literal)
		}
		return v.Bits()
	case corpus.ValueTypeExternRef:
		if v.IsNull() {
			return 0, nil
		}
		idx, err := v.Bits()
		if err != nil {
			return 0, err
		}
		return idx + 1, nil
	case corpus.ValueTypeFuncRef:
		if v.IsNull() {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: non-null funcref argument", errUnsupported)
	default:
		return 0, fmt.Errorf("%w: %s", errUnsupported, v.Type)
	}
}

// decodeResult converts a raw wazero result into a comparable value.
func decodeResult(t api.ValueType, raw uint64) (corpus.Result, error) {
	switch t {
	case api.ValueTypeI32:
		return corpus.Result{Type: corpus.ValueTypeI32, Bits: uint64(uint32(raw))}, nil
	case api.ValueTypeI64:
		return corpus.Result{Type: corpus.ValueTypeI64, Bits: raw}, nil
	case api.ValueTypeF32:
		return corpus.Result{Type: corpus.ValueTypeF32, Bits: uint64(uint32(raw))}, nil
	case api.ValueTypeF64:
		return corpus.Result{Type: corpus.ValueTypeF64, Bits: raw}, nil
	case api.ValueTypeExternref:
		if raw == 0 {
			return corpus.Result{Type: corpus.ValueTypeExternRef, Null: true}, nil
		}
		return corpus.Result{Type: corpus.ValueTypeExternRef, Bits: raw - 1}, nil
	case valueTypeFuncref:
		return corpus.Result{Type: corpus.ValueTypeFuncRef, Bits: raw, Null: raw == 0}, nil
	default:
		return corpus.Result{}, fmt.Errorf("%w: result type %s", errUnsupported, api.ValueTypeName(t))
	}
}

// hasVector reports whether any value, including either-alternatives, is a
// v128.
func hasVector(values []corpus.Value) bool {
	for _, v := range values {
		if v.Type == corpus.ValueTypeV128 || hasVector(v.Alternatives) {
			return true
		}
	}
	return false
}

func hasVectorType(types []api.ValueType) bool {
	for _, t := range types {
		if t == valueTypeV128 {
			return true
		}
	}
	return false
}

func formatResult(r corpus.Result) string {
	if r.Null {
		return string(r.Type) + ":null"
	}
	return fmt.Sprintf("%s:%d", r.Type, r.Bits)
}
