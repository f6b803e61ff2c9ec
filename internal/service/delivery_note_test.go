package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/supplierportal/services/deliverynote/internal/ledger"
	"example.com/supplierportal/services/deliverynote/internal/model"
)

type mockNoteRepository struct {
	mock.Mock
}

func (m *mockNoteRepository) Create(ctx context.Context, note *model.DeliveryNote) (*model.DeliveryNote, error) {
	args := m.Called(ctx, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DeliveryNote), args.Error(1)
}

func (m *mockNoteRepository) GetByNoDN(ctx context.Context, noDN string) (*model.DeliveryNote, error) {
	args := m.Called(ctx, noDN)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DeliveryNote), args.Error(1)
}

func (m *mockNoteRepository) FindBySupplier(ctx context.Context, supplierCode string) ([]*model.DeliveryNote, error) {
	args := m.Called(ctx, supplierCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.DeliveryNote), args.Error(1)
}

func (m *mockNoteRepository) Save(ctx context.Context, note *model.DeliveryNote) (*model.DeliveryNote, error) {
	args := m.Called(ctx, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DeliveryNote), args.Error(1)
}

func (m *mockNoteRepository) SaveLine(ctx context.Context, line *model.DeliveryNoteLine) error {
	args := m.Called(ctx, line)
	return args.Error(0)
}

type mockEventRepository struct {
	mock.Mock
}

func (m *mockEventRepository) Create(ctx context.Context, event *model.SubmissionEvent) (*model.SubmissionEvent, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SubmissionEvent), args.Error(1)
}

func (m *mockEventRepository) FindByNoDN(ctx context.Context, noDN string) ([]*model.SubmissionEvent, error) {
	args := m.Called(ctx, noDN)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SubmissionEvent), args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetNote(ctx context.Context, noDN string) (*model.DeliveryNote, error) {
	args := m.Called(ctx, noDN)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DeliveryNote), args.Error(1)
}

func (m *mockCache) SetNote(ctx context.Context, note *model.DeliveryNote) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

func (m *mockCache) DeleteNote(ctx context.Context, noDN string) error {
	args := m.Called(ctx, noDN)
	return args.Error(0)
}

func (m *mockCache) FlushAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type mockBus struct {
	mock.Mock
}

func (m *mockBus) PublishMessage(ctx context.Context, message interface{}, queueName string) error {
	args := m.Called(ctx, message, queueName)
	return args.Error(0)
}

func (m *mockBus) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type mockSearch struct {
	mock.Mock
}

func (m *mockSearch) IndexSubmission(ctx context.Context, id string, document []byte) error {
	args := m.Called(ctx, id, document)
	return args.Error(0)
}

var errCacheMiss = errors.New("redis: nil")

type fixtures struct {
	notes  *mockNoteRepository
	events *mockEventRepository
	cache  *mockCache
	bus    *mockBus
	search *mockSearch
	svc    DeliveryNoteService
}

func newFixtures() *fixtures {
	f := &fixtures{
		notes:  new(mockNoteRepository),
		events: new(mockEventRepository),
		cache:  new(mockCache),
		bus:    new(mockBus),
		search: new(mockSearch),
	}
	f.svc = NewDeliveryNoteService(f.notes, f.events, f.cache, f.bus, f.search, "erp-dn-updates", nil)
	return f
}

func draftNote() *model.DeliveryNote {
	return &model.DeliveryNote{
		Base:             model.Base{UUID: "11111111-1111-1111-1111-111111111111", UpdatedAt: time.Unix(0, 1700000000000000000)},
		NoDN:             "DN-0001",
		PONo:             "PO-9001",
		SupplierCode:     "SUP01",
		PlanDeliveryDate: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		DriverName:       "Budi Santoso",
		PlatNumber:       "B1234AB",
		Status:           model.DraftDNStatus,
		Lines: []model.DeliveryNoteLine{
			{
				Base:       model.Base{UUID: "22222222-2222-2222-2222-222222222222"},
				DNDetailNo: "L1",
				PartNo:     "P-100",
				DNQty:      100,
			},
		},
	}
}

func confirmedNote() *model.DeliveryNote {
	note := draftNote()
	confirmedAt := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	qty := int64(80)
	note.ConfirmUpdateAt = &confirmedAt
	note.Status = model.ConfirmedDNStatus
	note.Lines[0].QtyConfirm = &qty
	return note
}

func TestSubmitQuantitiesFirstConfirmation(t *testing.T) {
	f := newFixtures()
	note := draftNote()

	f.notes.On("GetByNoDN", mock.Anything, "DN-0001").Return(note, nil)
	f.notes.On("Save", mock.Anything, note).Return(note, nil)
	f.notes.On("SaveLine", mock.Anything, mock.Anything).Return(nil)
	f.events.On("Create", mock.Anything, mock.Anything).Return(&model.SubmissionEvent{}, nil)
	f.cache.On("DeleteNote", mock.Anything, "DN-0001").Return(nil)
	f.bus.On("PublishMessage", mock.Anything, mock.Anything, "erp-dn-updates").Return(nil)
	f.search.On("IndexSubmission", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	resp, err := f.svc.SubmitQuantities(context.Background(), SubmitCommand{
		NoDN:    "DN-0001",
		Updates: []LineUpdate{{DNDetailNo: "L1", QtyConfirm: 80}},
	})
	require.NoError(t, err)

	require.NotNil(t, note.ConfirmUpdateAt)
	require.NotNil(t, note.Lines[0].QtyConfirm)
	assert.Equal(t, int64(80), *note.Lines[0].QtyConfirm)
	assert.Equal(t, model.ConfirmedDNStatus, note.Status)
	assert.Empty(t, note.Lines[0].Outstanding)

	require.Len(t, resp.Detail, 1)
	assert.Equal(t, "confirmed", resp.Status)

	f.notes.AssertExpectations(t)
	f.events.AssertExpectations(t)
	f.cache.AssertExpectations(t)
	f.bus.AssertExpectations(t)
	f.search.AssertExpectations(t)
}

func TestSubmitQuantitiesFirstConfirmationMustCoverEveryLine(t *testing.T) {
	f := newFixtures()
	note := draftNote()
	note.Lines = append(note.Lines, model.DeliveryNoteLine{
		Base:       model.Base{UUID: "33333333-3333-3333-3333-333333333333"},
		DNDetailNo: "L2",
		PartNo:     "P-200",
		DNQty:      50,
	})

	f.notes.On("GetByNoDN", mock.Anything, "DN-0001").Return(note, nil)

	_, err := f.svc.SubmitQuantities(context.Background(), SubmitCommand{
		NoDN:    "DN-0001",
		Updates: []LineUpdate{{DNDetailNo: "L1", QtyConfirm: 80}},
	})

	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ledger.ReasonRequired, verr.Reason)
	assert.Equal(t, "L2", verr.Field)

	// Nothing is persisted and L2 keeps its never-confirmed state.
	assert.Nil(t, note.ConfirmUpdateAt)
	assert.Nil(t, note.Lines[1].QtyConfirm)
	f.notes.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestSubmitQuantitiesFirstConfirmationRequiresDriverInfo(t *testing.T) {
	f := newFixtures()
	note := draftNote()
	note.DriverName = ""
	note.PlatNumber = ""

	f.notes.On("GetByNoDN", mock.Anything, "DN-0001").Return(note, nil)

	_, err := f.svc.SubmitQuantities(context.Background(), SubmitCommand{
		NoDN:    "DN-0001",
		Updates: []LineUpdate{{DNDetailNo: "L1", QtyConfirm: 80}},
	})

	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ledger.ReasonRequired, verr.Reason)
	assert.Nil(t, note.ConfirmUpdateAt)
	f.notes.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestSubmitQuantitiesOpensNextWave(t *testing.T) {
	f := newFixtures()
	note := confirmedNote()

	f.notes.On("GetByNoDN", mock.Anything, "DN-0001").Return(note, nil)
	f.notes.On("Save", mock.Anything, note).Return(note, nil)
	f.notes.On("SaveLine", mock.Anything, mock.Anything).Return(nil)
	f.events.On("Create", mock.Anything, mock.Anything).Return(&model.SubmissionEvent{}, nil)
	f.cache.On("DeleteNote", mock.Anything, "DN-0001").Return(nil)
	f.bus.On("PublishMessage", mock.Anything, mock.Anything, "erp-dn-updates").Return(nil)
	f.search.On("IndexSubmission", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	resp, err := f.svc.SubmitQuantities(context.Background(), SubmitCommand{
		NoDN:    "DN-0001",
		Updates: []LineUpdate{{DNDetailNo: "L1", QtyConfirm: 20}},
	})
	require.NoError(t, err)

	// First outstanding wave is wave 2; wave 1 was the confirmation.
	assert.Equal(t, int64(20), note.Lines[0].Outstanding[2])
	assert.Contains(t, note.ConfirmAt, 2)
	assert.Contains(t, resp.ConfirmAt, "wave_2")
	assert.Equal(t, []int64{20}, resp.Detail[0].Outstanding["wave_2"])

	// Confirmed quantity from wave 1 is untouched.
	assert.Equal(t, int64(80), *note.Lines[0].QtyConfirm)
}

func TestSubmitQuantitiesWaveSequence(t *testing.T) {
	f := newFixtures()
	note := confirmedNote()
	note.Lines[0].Outstanding = model.WaveQuantities{2: 10}
	note.ConfirmAt = model.WaveTimes{2: time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)}

	f.notes.On("GetByNoDN", mock.Anything, "DN-0001").Return(note, nil)
	f.notes.On("Save", mock.Anything, note).Return(note, nil)
	f.notes.On("SaveLine", mock.Anything, mock.Anything).Return(nil)
	f.events.On("Create", mock.Anything, mock.Anything).Return(&model.SubmissionEvent{}, nil)
	f.cache.On("DeleteNote", mock.Anything, "DN-0001").Return(nil)
	f.bus.On("PublishMessage", mock.Anything, mock.Anything, "erp-dn-updates").Return(nil)
	f.search.On("IndexSubmission", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.SubmitQuantities(context.Background(), SubmitCommand{
		NoDN:    "DN-0001",
		Updates: []LineUpdate{{DNDetailNo: "L1", QtyConfirm: 5}},
	})
	require.NoError(t, err)

	// Existing wave 2 is frozen; the new batch lands on wave 3.
	assert.Equal(t, int64(10), note.Lines[0].Outstanding[2])
	assert.Equal(t, int64(5), note.Lines[0].Outstanding[3])
}

func TestSubmitQuantitiesVersionConflict(t *testing.T) {
	f := newFixtures()
	note := draftNote()

	f.notes.On("GetByNoDN", mock.Anything, "DN-0001").Return(note, nil)

	_, err := f.svc.SubmitQuantities(context.Background(), SubmitCommand{
		NoDN:    "DN-0001",
		Version: "stale-token",
		Updates: []LineUpdate{{DNDetailNo: "L1", QtyConfirm: 80}},
	})

	var conflict *VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "DN-0001", conflict.NoDN)
	f.notes.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestSubmitQuantitiesMatchingVersionAccepted(t *testing.T) {
	f := newFixtures()
	note := draftNote()

	f.notes.On("GetByNoDN", mock.Anything, "DN-0001").Return(note, nil)
	f.notes.On("Save", mock.Anything, note).Return(note, nil)
	f.notes.On("SaveLine", mock.Anything, mock.Anything).Return(nil)
	f.events.On("Create", mock.Anything, mock.Anything).Return(&model.SubmissionEvent{}, nil)
	f.cache.On("DeleteNote", mock.Anything, "DN-0001").Return(nil)
	f.bus.On("PublishMessage", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.search.On("IndexSubmission", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.SubmitQuantities(context.Background(), SubmitCommand{
		NoDN:    "DN-0001",
		Version: "1700000000000000000",
		Updates: []LineUpdate{{DNDetailNo: "L1", QtyConfirm: 80}},
	})
	require.NoError(t, err)
}

func TestSubmitQuantitiesRejectsBounds(t *testing.T) {
	cases := []struct {
		name   string
		qty    int64
		reason ledger.ValidationReason
	}{
		{name: "negative", qty: -5, reason: ledger.ReasonNegative},
		{name: "exceeds requested", qty: 150, reason: ledger.ReasonExceedsRequested},
		{name: "all zero", qty: 0, reason: ledger.ReasonAllZero},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixtures()
			note := draftNote()
			f.notes.On("GetByNoDN", mock.Anything, "DN-0001").Return(note, nil)

			_, err := f.svc.SubmitQuantities(context.Background(), SubmitCommand{
				NoDN:    "DN-0001",
				Updates: []LineUpdate{{DNDetailNo: "L1", QtyConfirm: tc.qty}},
			})

			var verr *ledger.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.reason, verr.Reason)
			f.notes.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestSubmitQuantitiesClosedNoteRejected(t *testing.T) {
	f := newFixtures()
	note := confirmedNote()
	note.Lines[0].QtyDelivery = 100

	f.notes.On("GetByNoDN", mock.Anything, "DN-0001").Return(note, nil)

	_, err := f.svc.SubmitQuantities(context.Background(), SubmitCommand{
		NoDN:    "DN-0001",
		Updates: []LineUpdate{{DNDetailNo: "L1", QtyConfirm: 20}},
	})
	require.ErrorIs(t, err, ErrNoteClosed)
}

func TestSubmitQuantitiesBusFailureDoesNotFailSubmission(t *testing.T) {
	f := newFixtures()
	note := draftNote()

	f.notes.On("GetByNoDN", mock.Anything, "DN-0001").Return(note, nil)
	f.notes.On("Save", mock.Anything, note).Return(note, nil)
	f.notes.On("SaveLine", mock.Anything, mock.Anything).Return(nil)
	f.events.On("Create", mock.Anything, mock.Anything).Return(&model.SubmissionEvent{}, nil)
	f.cache.On("DeleteNote", mock.Anything, "DN-0001").Return(nil)
	f.bus.On("PublishMessage", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))
	f.search.On("IndexSubmission", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.SubmitQuantities(context.Background(), SubmitCommand{
		NoDN:    "DN-0001",
		Updates: []LineUpdate{{DNDetailNo: "L1", QtyConfirm: 80}},
	})
	require.NoError(t, err)
}

func TestGetSnapshotCacheMiss(t *testing.T) {
	f := newFixtures()
	note := draftNote()

	f.cache.On("GetNote", mock.Anything, "DN-0001").Return(nil, errCacheMiss)
	f.notes.On("GetByNoDN", mock.Anything, "DN-0001").Return(note, nil)
	f.cache.On("SetNote", mock.Anything, note).Return(nil)

	resp, err := f.svc.GetSnapshot(context.Background(), "DN-0001")
	require.NoError(t, err)
	assert.Equal(t, "DN-0001", resp.NoDN)
	assert.Equal(t, "2026-03-14", resp.PlanDeliveryDate)
	assert.Equal(t, "1700000000000000000", resp.Version)
	assert.Nil(t, resp.ConfirmUpdateAt)

	f.cache.AssertExpectations(t)
	f.notes.AssertExpectations(t)
}

func TestGetSnapshotCacheHit(t *testing.T) {
	f := newFixtures()
	note := draftNote()

	f.cache.On("GetNote", mock.Anything, "DN-0001").Return(note, nil)

	resp, err := f.svc.GetSnapshot(context.Background(), "DN-0001")
	require.NoError(t, err)
	assert.Equal(t, "DN-0001", resp.NoDN)
	f.notes.AssertNotCalled(t, "GetByNoDN", mock.Anything, mock.Anything)
}

func TestUpdateDriverInfoNormalizesPlate(t *testing.T) {
	f := newFixtures()
	note := draftNote()

	f.notes.On("GetByNoDN", mock.Anything, "DN-0001").Return(note, nil)
	f.notes.On("Save", mock.Anything, note).Return(note, nil)
	f.cache.On("DeleteNote", mock.Anything, "DN-0001").Return(nil)

	err := f.svc.UpdateDriverInfo(context.Background(), DriverInfoCommand{
		NoDN:       "DN-0001",
		DriverName: "Budi Santoso",
		PlatNumber: "b 1234 ab",
	})
	require.NoError(t, err)
	assert.Equal(t, "B1234AB", note.PlatNumber)
	assert.Equal(t, "Budi Santoso", note.DriverName)
}

func TestUpdateDriverInfoRejectsBadPlate(t *testing.T) {
	f := newFixtures()
	note := draftNote()
	f.notes.On("GetByNoDN", mock.Anything, "DN-0001").Return(note, nil)

	err := f.svc.UpdateDriverInfo(context.Background(), DriverInfoCommand{
		NoDN:       "DN-0001",
		DriverName: "Budi Santoso",
		PlatNumber: "!!!",
	})

	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ledger.ReasonBadFormat, verr.Reason)
	f.notes.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestUpdateDriverInfoLockedAfterConfirmation(t *testing.T) {
	f := newFixtures()
	note := confirmedNote()
	f.notes.On("GetByNoDN", mock.Anything, "DN-0001").Return(note, nil)

	err := f.svc.UpdateDriverInfo(context.Background(), DriverInfoCommand{
		NoDN:       "DN-0001",
		DriverName: "Budi Santoso",
		PlatNumber: "B1234AB",
	})
	require.ErrorIs(t, err, ErrDriverInfoLocked)
}

func TestHistoryReturnsAuditTrail(t *testing.T) {
	f := newFixtures()
	note := confirmedNote()
	events := []*model.SubmissionEvent{
		{NoDN: "DN-0001", Kind: model.ConfirmationSubmission, Wave: 1},
		{NoDN: "DN-0001", Kind: model.OutstandingSubmission, Wave: 2},
	}

	f.notes.On("GetByNoDN", mock.Anything, "DN-0001").Return(note, nil)
	f.events.On("FindByNoDN", mock.Anything, "DN-0001").Return(events, nil)

	got, err := f.svc.History(context.Background(), "DN-0001")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Wave)
	assert.Equal(t, 2, got[1].Wave)
}
