package core

import (
	"bytes"
	"fmt"
	"math/big"
)

// Numeric is an arbitrary-precision decimal value: mantissa * 10^-scale.
// Assets use Numeric instead of a machine integer so AssetDefinition's
// precision field has real meaning and quantities can't silently overflow a
// fixed-width type.
type Numeric struct {
	Mantissa *big.Int
	Scale    uint32
}

// NewNumeric constructs a Numeric from a mantissa and scale, rejecting a nil
// mantissa the way every decode-time constructor in this package rejects
// structurally incomplete candidates.
func NewNumeric(mantissa *big.Int, scale uint32) (Numeric, error) {
	if mantissa == nil {
		return Numeric{}, fmt.Errorf("%w: numeric mantissa is nil", ErrInvalid)
	}
	return Numeric{Mantissa: new(big.Int).Set(mantissa), Scale: scale}, nil
}

// ZeroNumeric returns the additive identity at the given scale.
func ZeroNumeric(scale uint32) Numeric {
	return Numeric{Mantissa: big.NewInt(0), Scale: scale}
}

// rescale returns both operands' mantissas expressed at the larger of the
// two scales, so they become directly comparable/addable.
func rescale(a, b Numeric) (*big.Int, *big.Int, uint32) {
	scale := a.Scale
	if b.Scale > scale {
		scale = b.Scale
	}
	// A nil mantissa (the zero Numeric) counts as zero, as in CanonicalBytes.
	am, bm := new(big.Int), new(big.Int)
	if a.Mantissa != nil {
		am.Set(a.Mantissa)
	}
	if b.Mantissa != nil {
		bm.Set(b.Mantissa)
	}
	if d := scale - a.Scale; d > 0 {
		am.Mul(am, pow10(d))
	}
	if d := scale - b.Scale; d > 0 {
		bm.Mul(bm, pow10(d))
	}
	return am, bm, scale
}

func pow10(n uint32) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Add returns a+b at the larger of the two scales.
func (a Numeric) Add(b Numeric) Numeric {
	am, bm, scale := rescale(a, b)
	return Numeric{Mantissa: am.Add(am, bm), Scale: scale}
}

// Sub returns a-b at the larger of the two scales. Callers that must reject
// negative results (asset quantities can't go negative) should check Sign()
// on the result themselves; Sub itself performs unchecked subtraction.
func (a Numeric) Sub(b Numeric) Numeric {
	am, bm, scale := rescale(a, b)
	return Numeric{Mantissa: am.Sub(am, bm), Scale: scale}
}

// CheckedSub behaves like Sub but returns ErrOverflow if the result would be
// negative, matching the "burn cannot exceed holding" invariant assets need.
func (a Numeric) CheckedSub(b Numeric) (Numeric, error) {
	r := a.Sub(b)
	if r.Sign() < 0 {
		return Numeric{}, fmt.Errorf("%w: numeric subtraction underflow", ErrOverflow)
	}
	return r, nil
}

// Sign returns -1, 0 or 1 per the mantissa's sign (scale never flips sign).
// A nil mantissa (the zero Numeric) has sign 0.
func (a Numeric) Sign() int {
	if a.Mantissa == nil {
		return 0
	}
	return a.Mantissa.Sign()
}

// Equal reports value equality after rescaling, so 1.0 (scale 1) equals 1.00
// (scale 2).
func (a Numeric) Equal(b Numeric) bool {
	am, bm, _ := rescale(a, b)
	return am.Cmp(bm) == 0
}

// Cmp compares two Numerics after rescaling.
func (a Numeric) Cmp(b Numeric) int {
	am, bm, _ := rescale(a, b)
	return am.Cmp(bm)
}

func (a Numeric) String() string {
	return fmt.Sprintf("%s*10^-%d", a.Mantissa.String(), a.Scale)
}

// CanonicalBytes encodes mantissa sign+magnitude and scale for canonical
// hashing, following the length-prefixed field convention. A nil mantissa
// (the zero Numeric) encodes as zero.
func (a Numeric) CanonicalBytes() []byte {
	var buf bytes.Buffer
	m := a.Mantissa
	if m == nil {
		m = big.NewInt(0)
	}
	sign := byte(0)
	if m.Sign() < 0 {
		sign = 1
	}
	buf.WriteByte(sign)
	writeLenPrefixed(&buf, m.Bytes())
	writeU32LE(&buf, a.Scale)
	return buf.Bytes()
}
