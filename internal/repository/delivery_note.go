package repository

import (
	"context"

	"gorm.io/gorm"

	"example.com/supplierportal/services/deliverynote/internal/db"
	"example.com/supplierportal/services/deliverynote/internal/model"
)

// DeliveryNoteRepository defines the data access interface for delivery notes
type DeliveryNoteRepository interface {
	Create(ctx context.Context, note *model.DeliveryNote) (*model.DeliveryNote, error)
	GetByNoDN(ctx context.Context, noDN string) (*model.DeliveryNote, error)
	FindBySupplier(ctx context.Context, supplierCode string) ([]*model.DeliveryNote, error)
	Save(ctx context.Context, note *model.DeliveryNote) (*model.DeliveryNote, error)
	SaveLine(ctx context.Context, line *model.DeliveryNoteLine) error
}

// deliveryNoteRepository implements DeliveryNoteRepository
type deliveryNoteRepository struct {
	db *gorm.DB
}

// NewDeliveryNoteRepository creates a new delivery note repository
func NewDeliveryNoteRepository(db *gorm.DB) DeliveryNoteRepository {
	return &deliveryNoteRepository{db: db}
}

// Create creates a new delivery note with its lines
func (r *deliveryNoteRepository) Create(ctx context.Context, note *model.DeliveryNote) (*model.DeliveryNote, error) {
	if err := r.db.WithContext(ctx).Create(note).Error; err != nil {
		return nil, err
	}
	return note, nil
}

// GetByNoDN gets a delivery note by its business key, lines included
func (r *deliveryNoteRepository) GetByNoDN(ctx context.Context, noDN string) (*model.DeliveryNote, error) {
	var note model.DeliveryNote
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("dn_detail_no")
		}).
		Where("no_dn = ?", noDN).
		First(&note).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &note, nil
}

// FindBySupplier finds all delivery notes for a supplier, newest first
func (r *deliveryNoteRepository) FindBySupplier(ctx context.Context, supplierCode string) ([]*model.DeliveryNote, error) {
	var notes []*model.DeliveryNote
	err := r.db.WithContext(ctx).
		Where("supplier_code = ?", supplierCode).
		Order("created_at DESC").
		Find(&notes).Error
	if err != nil {
		return nil, err
	}
	return notes, nil
}

// Save persists the delivery note header fields
func (r *deliveryNoteRepository) Save(ctx context.Context, note *model.DeliveryNote) (*model.DeliveryNote, error) {
	if err := r.db.WithContext(ctx).Omit("Lines").Save(note).Error; err != nil {
		return nil, err
	}
	return note, nil
}

// SaveLine persists one line item
func (r *deliveryNoteRepository) SaveLine(ctx context.Context, line *model.DeliveryNoteLine) error {
	return r.db.WithContext(ctx).Save(line).Error
}
