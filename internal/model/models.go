package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model fields shared by all models
type Base struct {
	UUID      string    `json:"uuid" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns the primary key when the caller has not
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.UUID == "" {
		b.UUID = uuid.NewString()
	}
	return nil
}

// DNStatus defines the lifecycle status of a delivery note
type DNStatus uint

const (
	// DraftDNStatus represents a delivery note with no confirmation yet
	DraftDNStatus DNStatus = iota
	// ConfirmedDNStatus represents a delivery note with at least one confirmed wave
	ConfirmedDNStatus
	// ClosedDNStatus represents a delivery note fully delivered against its request
	ClosedDNStatus
)

// DeliveryNote represents one shipment document issued against a purchase order.
type DeliveryNote struct {
	Base
	NoDN             string             `json:"no_dn" gorm:"column:no_dn;uniqueIndex"`
	PONo             string             `json:"po_no" gorm:"column:po_no;index"`
	SupplierCode     string             `json:"supplier_code" gorm:"column:supplier_code;index"`
	PlanDeliveryDate time.Time          `json:"plan_delivery_date"`
	DriverName       string             `json:"driver_name"`
	PlatNumber       string             `json:"plat_number"`
	ConfirmUpdateAt  *time.Time         `json:"confirm_update_at"`
	ConfirmAt        WaveTimes          `json:"confirm_at" gorm:"type:jsonb"`
	Status           DNStatus           `json:"status"`
	Lines            []DeliveryNoteLine `json:"detail" gorm:"foreignKey:DeliveryNoteID"`
}

// DeliveryNoteLine represents one part line within a delivery note.
//
// QtyConfirm is a pointer because "never confirmed" and "confirmed at zero"
// are different states: the former blocks wave opening, the latter is a
// legitimate zero commitment. ReceiptQty is a pointer because receipt data
// comes from the warehouse side and may not exist yet.
type DeliveryNoteLine struct {
	Base
	DeliveryNoteID string         `json:"-" gorm:"column:delivery_note_id;type:uuid;index"`
	DNDetailNo     string         `json:"dn_detail_no" gorm:"column:dn_detail_no;index"`
	PartNo         string         `json:"part_no"`
	ItemDesc       string         `json:"item_desc_a"`
	DNUnit         string         `json:"dn_unit"`
	DNQty          int64          `json:"dn_qty"`
	DNSnp          int64          `json:"dn_snp"`
	POQty          int64          `json:"po_qty"`
	QtyConfirm     *int64         `json:"qty_confirm"`
	QtyDelivery    int64          `json:"qty_delivery"`
	ReceiptQty     *int64         `json:"receipt_qty"`
	Outstanding    WaveQuantities `json:"outstanding" gorm:"type:jsonb"`
}

// SubmissionKind defines the kind of quantity submission
type SubmissionKind string

const (
	// ConfirmationSubmission represents the first-pass (wave 1) confirmation
	ConfirmationSubmission SubmissionKind = "confirmation"
	// OutstandingSubmission represents a later-wave outstanding submission
	OutstandingSubmission SubmissionKind = "outstanding"
	// DriverInfoSubmission represents a driver/vehicle info update
	DriverInfoSubmission SubmissionKind = "driver-info"
)

// SubmissionEvent is the audit record of one accepted submission against a
// delivery note. Details carries the submitted per-line quantities as JSON.
type SubmissionEvent struct {
	Base
	DeliveryNoteID string         `json:"delivery_note_id" gorm:"column:delivery_note_id;type:uuid;index"`
	NoDN           string         `json:"no_dn" gorm:"column:no_dn;index"`
	Kind           SubmissionKind `json:"kind"`
	Wave           int            `json:"wave"`
	SubmittedBy    string         `json:"submitted_by"`
	Details        []byte         `json:"details" gorm:"type:jsonb"`
}

// StatusFromString converts a string to a DNStatus
func StatusFromString(status string) DNStatus {
	switch status {
	case "draft":
		return DraftDNStatus
	case "confirmed":
		return ConfirmedDNStatus
	case "closed":
		return ClosedDNStatus
	default:
		return DraftDNStatus
	}
}

// String returns a string representation of DNStatus
func (s DNStatus) String() string {
	statusMap := map[DNStatus]string{
		DraftDNStatus:     "draft",
		ConfirmedDNStatus: "confirmed",
		ClosedDNStatus:    "closed",
	}

	if str, ok := statusMap[s]; ok {
		return str
	}
	return "unknown"
}
