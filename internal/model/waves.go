package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// WaveQuantities maps a wave index (>= 2) to the outstanding quantity
// submitted for that wave. Wave indexes are integers end to end; the
// legacy "wave_N" wire keys are translated at the gateway boundary.
type WaveQuantities map[int]int64

// WaveTimes maps a wave index to the timestamp its submission was accepted.
type WaveTimes map[int]time.Time

// Waves returns the wave indexes present, sorted ascending.
func (w WaveQuantities) Waves() []int {
	waves := make([]int, 0, len(w))
	for n := range w {
		waves = append(waves, n)
	}
	sort.Ints(waves)
	return waves
}

// Sum returns the total quantity across all waves strictly below limit.
// Pass a limit of 0 to sum every wave.
func (w WaveQuantities) Sum(limit int) int64 {
	var total int64
	for n, qty := range w {
		if limit > 0 && n >= limit {
			continue
		}
		total += qty
	}
	return total
}

// Value implements driver.Valuer so wave maps persist as jsonb.
func (w WaveQuantities) Value() (driver.Value, error) {
	if w == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(w)
}

// Scan implements sql.Scanner for jsonb columns.
func (w *WaveQuantities) Scan(value interface{}) error {
	return scanJSON(value, w)
}

// Value implements driver.Valuer so wave timestamp maps persist as jsonb.
func (w WaveTimes) Value() (driver.Value, error) {
	if w == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(w)
}

// Scan implements sql.Scanner for jsonb columns.
func (w *WaveTimes) Scan(value interface{}) error {
	return scanJSON(value, w)
}

func scanJSON(value, target interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, target)
	case string:
		return json.Unmarshal([]byte(v), target)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}
}
