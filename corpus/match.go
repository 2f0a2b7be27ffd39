package corpus

// Result is a concrete value produced by an engine. Scalars live in Bits,
// vectors use Bits as the low half and High as the high half, references use
// Bits as the index unless Null is set.
type Result struct {
	Type ValueType
	Bits uint64
	High uint64
	Null bool
}

const (
	f32SignMask     = 0x7fffffff
	f32CanonicalNaN = 0x7fc00000
	f64SignMask     = 0x7fffffffffffffff
	f64CanonicalNaN = 0x7ff8000000000000
)

// Matches reports whether an engine result satisfies the expected value.
// Integers and float literals compare by bit pattern, NaN patterns follow the
// canonical/arithmetic rules and vectors compare lane by lane.
func (v Value) Matches(r Result) bool {
	if v.Type == ValueTypeEither {
		for _, alt := range v.Alternatives {
			if alt.Matches(r) {
				return true
			}
		}
		return false
	}
	if v.Type != r.Type {
		return false
	}

	switch v.Type {
	case ValueTypeI32:
		want, err := v.Bits()
		return err == nil && uint32(want) == uint32(r.Bits)
	case ValueTypeI64:
		want, err := v.Bits()
		return err == nil && want == r.Bits
	case ValueTypeF32:
		return matchFloat(v.Literal, r.Bits&mask(32), 32)
	case ValueTypeF64:
		return matchFloat(v.Literal, r.Bits, 64)
	case ValueTypeV128:
		return v.matchV128(r)
	case ValueTypeFuncRef, ValueTypeExternRef:
		if !v.HasLiteral {
			return !r.Null
		}
		if v.IsNull() {
			return r.Null
		}
		want, err := v.Bits()
		return err == nil && !r.Null && want == r.Bits
	default:
		return false
	}
}

func (v Value) matchV128(r Result) bool {
	width, err := laneWidth(v.LaneType)
	if err != nil || len(v.Lanes)*width != 128 {
		return false
	}
	for i, lane := range v.Lanes {
		got := getLane(r.Bits, r.High, i, width)
		if isFloatLane(v.LaneType) {
			if !matchFloat(lane, got, width) {
				return false
			}
			continue
		}
		want, err := parseLiteral(lane, width)
		if err != nil || want != got {
			return false
		}
	}
	return true
}

func matchFloat(literal string, got uint64, width int) bool {
	switch literal {
	case NaNCanonical:
		if width == 32 {
			return got&f32SignMask == f32CanonicalNaN
		}
		return got&f64SignMask == f64CanonicalNaN
	case NaNArithmetic:
		if width == 32 {
			return got&f32CanonicalNaN == f32CanonicalNaN
		}
		return got&f64CanonicalNaN == f64CanonicalNaN
	default:
		want, err := parseLiteral(literal, width)
		return err == nil && want == got
	}
}
