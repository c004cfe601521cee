// Package arith provides checked integer arithmetic for fee and share
// computation. Intermediates are widened so a*b never wraps before the
// division.
package arith

import (
	"github.com/holiman/uint256"

	"spl-rewards-token/internal/program"
)

// MulDiv computes floor(a*b/den) with a widened intermediate. Returns
// ErrOverflow when den is zero or the quotient does not fit in uint64.
func MulDiv(a, b, den uint64) (uint64, error) {
	if den == 0 {
		return 0, program.ErrOverflow
	}
	product := new(uint256.Int).Mul(
		uint256.NewInt(a),
		uint256.NewInt(b),
	)
	quotient := product.Div(product, uint256.NewInt(den))
	if !quotient.IsUint64() {
		return 0, program.ErrOverflow
	}
	return quotient.Uint64(), nil
}

// CheckedSub computes a-b, returning ErrOverflow on underflow.
func CheckedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, program.ErrOverflow
	}
	return a - b, nil
}

// CheckedAdd computes a+b, returning ErrOverflow on wraparound.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, program.ErrOverflow
	}
	return sum, nil
}
