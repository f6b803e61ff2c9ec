// Package ledger holds the pure derivation and validation helpers for a
// delivery note's line items and per-wave outstanding quantities. Nothing
// in this package touches the network or the database.
package ledger

import (
	"sort"
	"strconv"

	"example.com/supplierportal/services/deliverynote/internal/model"
)

// MinusSentinel is rendered when the shortfall cannot be computed because
// receipt data is absent from the snapshot.
const MinusSentinel = "—"

// Minus returns the shortfall between requested and received quantity for a
// line. The second return value is false when the warehouse has not reported
// a receipt quantity yet, in which case the value is meaningless.
func Minus(line model.DeliveryNoteLine) (int64, bool) {
	if line.ReceiptQty == nil {
		return 0, false
	}
	return line.DNQty - *line.ReceiptQty, true
}

// FormatMinus renders the shortfall for display, falling back to the
// sentinel when receipt data is missing.
func FormatMinus(line model.DeliveryNoteLine) string {
	minus, ok := Minus(line)
	if !ok {
		return MinusSentinel
	}
	return strconv.FormatInt(minus, 10)
}

// AllDelivered reports whether every line's delivered quantity matches its
// requested quantity. When true, no further reconciliation wave may open.
func AllDelivered(lines []model.DeliveryNoteLine) bool {
	for _, line := range lines {
		if line.QtyDelivery != line.DNQty {
			return false
		}
	}
	return true
}

// SeedOutstanding computes the pre-filled suggestion for a new wave:
// requested minus confirmed minus everything carried by earlier waves.
//
// The seed is deliberately not clamped at zero. A negative seed means the
// supplier has over-committed across waves and the caller should surface it
// as a warning; submission validation still rejects negative final values.
func SeedOutstanding(line model.DeliveryNoteLine) int64 {
	var confirmed int64
	if line.QtyConfirm != nil {
		confirmed = *line.QtyConfirm
	}
	return line.DNQty - confirmed - line.Outstanding.Sum(0)
}

// WaveNumbers returns the union of wave indexes observed across every
// line's outstanding map, sorted ascending.
func WaveNumbers(lines []model.DeliveryNoteLine) []int {
	seen := map[int]bool{}
	for _, line := range lines {
		for _, n := range line.Outstanding.Waves() {
			seen[n] = true
		}
	}
	waves := make([]int, 0, len(seen))
	for n := range seen {
		waves = append(waves, n)
	}
	sort.Ints(waves)
	return waves
}

// NextWave returns the index the next outstanding wave would get:
// max(existing waves, default 1) + 1. The first outstanding wave is
// therefore always wave 2; wave 1 is the initial confirmation.
func NextWave(lines []model.DeliveryNoteLine) int {
	max := 1
	for _, n := range WaveNumbers(lines) {
		if n > max {
			max = n
		}
	}
	return max + 1
}

// ValidateQuantities checks one submission batch against the requested
// quantities. Keys of edits are dn_detail_no values; requested maps the
// same keys to the line's requested quantity. The whole batch is rejected
// on the first bounds violation, and an all-zero batch is rejected even
// when every individual value is within bounds.
func ValidateQuantities(edits map[string]int64, requested map[string]int64) error {
	anyPositive := false
	for detailNo, qty := range edits {
		if qty < 0 {
			return &ValidationError{Reason: ReasonNegative, Field: detailNo}
		}
		max, ok := requested[detailNo]
		if !ok {
			return &ValidationError{Reason: ReasonRequired, Field: detailNo, Detail: "unknown line"}
		}
		if qty > max {
			return &ValidationError{Reason: ReasonExceedsRequested, Field: detailNo, Max: max}
		}
		if qty > 0 {
			anyPositive = true
		}
	}
	if !anyPositive {
		return &ValidationError{Reason: ReasonAllZero}
	}
	return nil
}
