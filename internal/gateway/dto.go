package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Snapshot is the authoritative state of one delivery note as returned by
// the backend. Wave-keyed JSON objects from the wire ("wave_2", "confirmAt2")
// are translated into integer-indexed maps here so nothing downstream ever
// scans string prefixes.
type Snapshot struct {
	NoDN             string
	PONo             string
	PlanDeliveryDate time.Time
	ConfirmUpdateAt  *time.Time
	DriverName       string
	PlatNumber       string
	ConfirmAt        map[int]time.Time
	Lines            []SnapshotLine
	Version          string
}

// SnapshotLine is one line item within a snapshot.
type SnapshotLine struct {
	DNDetailNo  string
	PartNo      string
	ItemDesc    string
	DNUnit      string
	DNQty       int64
	DNSnp       int64
	POQty       int64
	QtyConfirm  *int64
	QtyDelivery int64
	ReceiptQty  *int64
	Outstanding map[int]int64
}

// LineUpdate carries one line's submitted quantity.
type LineUpdate struct {
	DNDetailNo string `json:"dn_detail_no"`
	QtyConfirm int64  `json:"qty_confirm"`
}

// UpdateCommand is the body of PUT /dn/update. The same command serves both
// the wave-1 confirmation and later-wave outstanding submissions; the
// backend decides the wave from its persisted state. Version echoes the
// snapshot version so the backend can detect concurrent edits.
type UpdateCommand struct {
	NoDN    string       `json:"no_dn"`
	Version string       `json:"version,omitempty"`
	Updates []LineUpdate `json:"updates"`
}

type driverInfoPayload struct {
	NoDN       string `json:"no_dn"`
	DriverName string `json:"driver_name"`
	PlatNumber string `json:"plat_number"`
}

type snapshotLinePayload struct {
	DNDetailNo  string             `json:"dn_detail_no"`
	PartNo      string             `json:"part_no"`
	ItemDesc    string             `json:"item_desc_a"`
	DNUnit      string             `json:"dn_unit"`
	DNQty       int64              `json:"dn_qty"`
	DNSnp       int64              `json:"dn_snp"`
	POQty       int64              `json:"po_qty"`
	QtyConfirm  *int64             `json:"qty_confirm"`
	QtyDelivery int64              `json:"qty_delivery"`
	ReceiptQty  *int64             `json:"receipt_qty"`
	Outstanding map[string][]int64 `json:"outstanding"`
}

type snapshotPayload struct {
	NoDN             string                `json:"no_dn"`
	PONo             string                `json:"po_no"`
	PlanDeliveryDate string                `json:"plan_delivery_date"`
	ConfirmUpdateAt  *time.Time            `json:"confirm_update_at"`
	DriverName       string                `json:"driver_name"`
	PlatNumber       string                `json:"plat_number"`
	ConfirmAt        map[string]time.Time  `json:"confirm_at"`
	Detail           []snapshotLinePayload `json:"detail"`
	Version          string                `json:"version"`
}

// parseWaveKey extracts the wave index from a wire key. Both historical key
// spellings ("wave_2", "confirmAt2") and a bare integer are accepted.
func parseWaveKey(key string) (int, error) {
	trimmed := key
	switch {
	case strings.HasPrefix(key, "wave_"):
		trimmed = strings.TrimPrefix(key, "wave_")
	case strings.HasPrefix(key, "confirmAt"):
		trimmed = strings.TrimPrefix(key, "confirmAt")
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("unrecognized wave key %q", key)
	}
	return n, nil
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	var payload snapshotPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	snap := &Snapshot{
		NoDN:            payload.NoDN,
		PONo:            payload.PONo,
		ConfirmUpdateAt: payload.ConfirmUpdateAt,
		DriverName:      payload.DriverName,
		PlatNumber:      payload.PlatNumber,
		ConfirmAt:       make(map[int]time.Time, len(payload.ConfirmAt)),
		Version:         payload.Version,
	}

	if payload.PlanDeliveryDate != "" {
		planned, err := parseDate(payload.PlanDeliveryDate)
		if err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}
		snap.PlanDeliveryDate = planned
	}

	for key, ts := range payload.ConfirmAt {
		wave, err := parseWaveKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}
		snap.ConfirmAt[wave] = ts
	}

	snap.Lines = make([]SnapshotLine, 0, len(payload.Detail))
	for _, line := range payload.Detail {
		decoded := SnapshotLine{
			DNDetailNo:  line.DNDetailNo,
			PartNo:      line.PartNo,
			ItemDesc:    line.ItemDesc,
			DNUnit:      line.DNUnit,
			DNQty:       line.DNQty,
			DNSnp:       line.DNSnp,
			POQty:       line.POQty,
			QtyConfirm:  line.QtyConfirm,
			QtyDelivery: line.QtyDelivery,
			ReceiptQty:  line.ReceiptQty,
			Outstanding: make(map[int]int64, len(line.Outstanding)),
		}
		for key, values := range line.Outstanding {
			wave, err := parseWaveKey(key)
			if err != nil {
				return nil, fmt.Errorf("failed to decode snapshot: %w", err)
			}
			// The wire wraps each wave quantity in a single-element array.
			if len(values) > 0 {
				decoded.Outstanding[wave] = values[0]
			}
		}
		snap.Lines = append(snap.Lines, decoded)
	}

	return snap, nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
