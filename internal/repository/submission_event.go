package repository

import (
	"context"

	"gorm.io/gorm"

	"example.com/supplierportal/services/deliverynote/internal/model"
)

// SubmissionEventRepository defines the data access interface for the
// submission audit trail
type SubmissionEventRepository interface {
	Create(ctx context.Context, event *model.SubmissionEvent) (*model.SubmissionEvent, error)
	FindByNoDN(ctx context.Context, noDN string) ([]*model.SubmissionEvent, error)
}

// submissionEventRepository implements SubmissionEventRepository
type submissionEventRepository struct {
	db *gorm.DB
}

// NewSubmissionEventRepository creates a new submission event repository
func NewSubmissionEventRepository(db *gorm.DB) SubmissionEventRepository {
	return &submissionEventRepository{db: db}
}

// Create appends an audit event
func (r *submissionEventRepository) Create(ctx context.Context, event *model.SubmissionEvent) (*model.SubmissionEvent, error) {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

// FindByNoDN lists a note's audit events in submission order
func (r *submissionEventRepository) FindByNoDN(ctx context.Context, noDN string) ([]*model.SubmissionEvent, error) {
	var events []*model.SubmissionEvent
	err := r.db.WithContext(ctx).
		Where("no_dn = ?", noDN).
		Order("created_at").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
