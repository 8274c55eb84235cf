package ledger

import (
	"fmt"
	"math"
	"strconv"
)

// Quantity is a fixed-point consumption amount stored in hundredths of a
// unit. Fractional deltas (processing minutes, partial exports) accumulate
// without float drift; whole-unit resources just use integral values.
type Quantity int64

const quantityScale = 100

// QuantityFromInt converts whole units to a Quantity.
func QuantityFromInt(n int64) Quantity {
	return Quantity(n * quantityScale)
}

// QuantityFromFloat converts a fractional amount to the nearest hundredth.
func QuantityFromFloat(f float64) Quantity {
	return Quantity(math.Round(f * quantityScale))
}

// Float returns the quantity as a floating-point unit count.
func (q Quantity) Float() float64 {
	return float64(q) / quantityScale
}

// Units returns the quantity in whole units, truncating fractions.
func (q Quantity) Units() int64 {
	return int64(q) / quantityScale
}

// Ceil returns the quantity rounded up to whole units. Limit checks use
// this so a fractional overage still counts against the cap.
func (q Quantity) Ceil() int64 {
	units := int64(q) / quantityScale
	if int64(q)%quantityScale > 0 {
		units++
	}
	return units
}

func (q Quantity) String() string {
	if int64(q)%quantityScale == 0 {
		return strconv.FormatInt(q.Units(), 10)
	}
	return fmt.Sprintf("%.2f", q.Float())
}

// MarshalJSON emits the quantity as a plain number in units.
func (q Quantity) MarshalJSON() ([]byte, error) {
	if int64(q)%quantityScale == 0 {
		return strconv.AppendInt(nil, q.Units(), 10), nil
	}
	return fmt.Appendf(nil, "%.2f", q.Float()), nil
}

// UnmarshalJSON accepts integral or fractional unit counts.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("ledger: invalid quantity %q: %w", data, err)
	}
	*q = QuantityFromFloat(f)
	return nil
}
