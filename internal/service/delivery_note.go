package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"example.com/supplierportal/services/deliverynote/internal/cache"
	"example.com/supplierportal/services/deliverynote/internal/ledger"
	"example.com/supplierportal/services/deliverynote/internal/messagebus"
	"example.com/supplierportal/services/deliverynote/internal/metrics"
	"example.com/supplierportal/services/deliverynote/internal/model"
	"example.com/supplierportal/services/deliverynote/internal/repository"
	"example.com/supplierportal/services/deliverynote/internal/search"
)

// LineUpdate carries one line's submitted quantity.
type LineUpdate struct {
	DNDetailNo string `json:"dn_detail_no"`
	QtyConfirm int64  `json:"qty_confirm"`
}

// SubmitCommand is one quantity submission batch. The wave is never part of
// the command: the stored note decides whether this is the first
// confirmation or the next outstanding wave.
type SubmitCommand struct {
	NoDN        string       `json:"no_dn"`
	Version     string       `json:"version"`
	SubmittedBy string       `json:"submitted_by"`
	Updates     []LineUpdate `json:"updates"`
}

// DriverInfoCommand updates the driver and vehicle for a note.
type DriverInfoCommand struct {
	NoDN       string `json:"no_dn"`
	DriverName string `json:"driver_name"`
	PlatNumber string `json:"plat_number"`
}

// SnapshotLineResponse is the wire shape of one line item. Outstanding wave
// quantities are keyed "wave_N" with each value wrapped in a single-element
// array, matching what portal clients already parse.
type SnapshotLineResponse struct {
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

// SnapshotResponse is the wire shape of one delivery note.
type SnapshotResponse struct {
	NoDN             string                 `json:"no_dn"`
	PONo             string                 `json:"po_no"`
	SupplierCode     string                 `json:"supplier_code"`
	PlanDeliveryDate string                 `json:"plan_delivery_date"`
	ConfirmUpdateAt  *time.Time             `json:"confirm_update_at"`
	DriverName       string                 `json:"driver_name"`
	PlatNumber       string                 `json:"plat_number"`
	ConfirmAt        map[string]time.Time   `json:"confirm_at"`
	Status           string                 `json:"status"`
	Detail           []SnapshotLineResponse `json:"detail"`
	Version          string                 `json:"version"`
}

// DeliveryNoteService defines the business logic for delivery note
// reconciliation
type DeliveryNoteService interface {
	GetSnapshot(ctx context.Context, noDN string) (*SnapshotResponse, error)
	ListBySupplier(ctx context.Context, supplierCode string) ([]*model.DeliveryNote, error)
	SubmitQuantities(ctx context.Context, cmd SubmitCommand) (*SnapshotResponse, error)
	UpdateDriverInfo(ctx context.Context, cmd DriverInfoCommand) error
	History(ctx context.Context, noDN string) ([]*model.SubmissionEvent, error)
}

// deliveryNoteService implements DeliveryNoteService
type deliveryNoteService struct {
	notes    repository.DeliveryNoteRepository
	events   repository.SubmissionEventRepository
	cache    cache.SnapshotCache
	bus      messagebus.Client
	search   search.Client
	erpQueue string
	log      *logrus.Logger
}

// NewDeliveryNoteService creates a new delivery note service
func NewDeliveryNoteService(
	notes repository.DeliveryNoteRepository,
	events repository.SubmissionEventRepository,
	snapshotCache cache.SnapshotCache,
	bus messagebus.Client,
	searchClient search.Client,
	erpQueue string,
	log *logrus.Logger,
) DeliveryNoteService {
	if log == nil {
		log = logrus.New()
	}
	return &deliveryNoteService{
		notes:    notes,
		events:   events,
		cache:    snapshotCache,
		bus:      bus,
		search:   searchClient,
		erpQueue: erpQueue,
		log:      log,
	}
}

// GetSnapshot returns the authoritative state of one delivery note,
// cache-aside.
func (s *deliveryNoteService) GetSnapshot(ctx context.Context, noDN string) (*SnapshotResponse, error) {
	collector := metrics.GetCollector()

	if note, err := s.cache.GetNote(ctx, noDN); err == nil {
		collector.RecordCacheLookup(true)
		return assembleSnapshot(note), nil
	} else if !cache.IsMiss(err) {
		s.log.WithError(err).WithField("no_dn", noDN).Warn("Cache lookup failed")
	}
	collector.RecordCacheLookup(false)

	note, err := s.notes.GetByNoDN(ctx, noDN)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetNote(ctx, note); err != nil {
		s.log.WithError(err).WithField("no_dn", noDN).Warn("Failed to cache delivery note")
	}
	return assembleSnapshot(note), nil
}

// ListBySupplier returns every delivery note for a supplier
func (s *deliveryNoteService) ListBySupplier(ctx context.Context, supplierCode string) ([]*model.DeliveryNote, error) {
	return s.notes.FindBySupplier(ctx, supplierCode)
}

// SubmitQuantities applies one submission batch. The first accepted batch is
// the wave-1 confirmation and stamps confirm_update_at; every later batch
// opens the next outstanding wave. All quantity invariants are re-checked
// here even though clients validate before submitting.
func (s *deliveryNoteService) SubmitQuantities(ctx context.Context, cmd SubmitCommand) (*SnapshotResponse, error) {
	startTime := time.Now()
	collector := metrics.GetCollector()

	note, err := s.notes.GetByNoDN(ctx, cmd.NoDN)
	if err != nil {
		return nil, err
	}

	if cmd.Version != "" && cmd.Version != versionToken(note) {
		collector.IncrementCounter(metrics.CounterSubmissionConflicts, 1)
		collector.RecordError(metrics.ErrorTypeConflict)
		return nil, &VersionConflictError{NoDN: cmd.NoDN}
	}

	edits := make(map[string]int64, len(cmd.Updates))
	requested := make(map[string]int64, len(note.Lines))
	for _, update := range cmd.Updates {
		edits[update.DNDetailNo] = update.QtyConfirm
	}
	for _, line := range note.Lines {
		requested[line.DNDetailNo] = line.DNQty
	}
	if err := ledger.ValidateQuantities(edits, requested); err != nil {
		collector.RecordRejection(metrics.ErrorTypeValidation)
		return nil, err
	}

	now := time.Now().UTC()
	wave := 1
	kind := model.ConfirmationSubmission

	if note.ConfirmUpdateAt == nil {
		// The first confirmation must cover every line and carry validated
		// driver info; a partially confirmed note would leave some lines in
		// the "never confirmed" state behind a stamped confirm_update_at.
		if note.DriverName == "" || note.PlatNumber == "" {
			collector.RecordRejection(metrics.ErrorTypeValidation)
			return nil, ledger.NewValidationError(ledger.ReasonRequired, "driver_name",
				"driver info must be set before the first confirmation")
		}
		for i := range note.Lines {
			if _, ok := edits[note.Lines[i].DNDetailNo]; !ok {
				collector.RecordRejection(metrics.ErrorTypeValidation)
				return nil, ledger.NewValidationError(ledger.ReasonRequired, note.Lines[i].DNDetailNo,
					"confirmation batch must cover every line")
			}
		}
		for i := range note.Lines {
			confirmed := edits[note.Lines[i].DNDetailNo]
			note.Lines[i].QtyConfirm = &confirmed
		}
		note.ConfirmUpdateAt = &now
		note.Status = model.ConfirmedDNStatus
	} else {
		if ledger.AllDelivered(note.Lines) {
			collector.RecordRejection(metrics.ErrorTypeValidation)
			return nil, ErrNoteClosed
		}
		wave = ledger.NextWave(note.Lines)
		kind = model.OutstandingSubmission
		if note.ConfirmAt == nil {
			note.ConfirmAt = model.WaveTimes{}
		}
		note.ConfirmAt[wave] = now
		for i := range note.Lines {
			qty, ok := edits[note.Lines[i].DNDetailNo]
			if !ok {
				continue
			}
			if note.Lines[i].Outstanding == nil {
				note.Lines[i].Outstanding = model.WaveQuantities{}
			}
			note.Lines[i].Outstanding[wave] = qty
		}
	}

	if _, err := s.notes.Save(ctx, note); err != nil {
		return nil, errors.Wrap(err, "failed to persist delivery note")
	}
	for i := range note.Lines {
		if _, ok := edits[note.Lines[i].DNDetailNo]; !ok {
			continue
		}
		if err := s.notes.SaveLine(ctx, &note.Lines[i]); err != nil {
			return nil, errors.Wrap(err, "failed to persist delivery note line")
		}
	}

	s.recordSubmission(ctx, note, kind, wave, cmd.SubmittedBy, cmd.Updates)

	if err := s.cache.DeleteNote(ctx, cmd.NoDN); err != nil {
		s.log.WithError(err).WithField("no_dn", cmd.NoDN).Warn("Failed to invalidate cache")
	}

	collector.RecordSubmission(wave, time.Since(startTime))
	s.log.WithFields(logrus.Fields{
		"no_dn": cmd.NoDN,
		"wave":  wave,
		"lines": len(cmd.Updates),
	}).Info("Submission accepted")

	return assembleSnapshot(note), nil
}

// UpdateDriverInfo sets driver and vehicle info for a note that has not been
// confirmed yet. The plate is stored normalized.
func (s *deliveryNoteService) UpdateDriverInfo(ctx context.Context, cmd DriverInfoCommand) error {
	collector := metrics.GetCollector()

	note, err := s.notes.GetByNoDN(ctx, cmd.NoDN)
	if err != nil {
		return err
	}
	if note.ConfirmUpdateAt != nil {
		return ErrDriverInfoLocked
	}

	if err := ledger.ValidateDriverName(cmd.DriverName); err != nil {
		collector.RecordRejection(metrics.ErrorTypeValidation)
		return err
	}
	plate := ledger.ValidateLicensePlate(cmd.PlatNumber)
	if !plate.Valid {
		collector.RecordRejection(metrics.ErrorTypeValidation)
		return ledger.NewValidationError(ledger.ReasonBadFormat, "plat_number", plate.Err)
	}

	note.DriverName = cmd.DriverName
	note.PlatNumber = plate.Normalized
	if _, err := s.notes.Save(ctx, note); err != nil {
		return errors.Wrap(err, "failed to persist driver info")
	}

	if err := s.cache.DeleteNote(ctx, cmd.NoDN); err != nil {
		s.log.WithError(err).WithField("no_dn", cmd.NoDN).Warn("Failed to invalidate cache")
	}

	collector.IncrementCounter(metrics.CounterDriverInfoUpdates, 1)
	s.log.WithFields(logrus.Fields{
		"no_dn":       cmd.NoDN,
		"plat_number": plate.Normalized,
	}).Info("Driver info updated")
	return nil
}

// History returns the audit trail of accepted submissions for one note
func (s *deliveryNoteService) History(ctx context.Context, noDN string) ([]*model.SubmissionEvent, error) {
	if _, err := s.notes.GetByNoDN(ctx, noDN); err != nil {
		return nil, err
	}
	return s.events.FindByNoDN(ctx, noDN)
}

// recordSubmission appends the audit event, pushes it to the ERP queue and
// indexes it for reporting. Downstream failures are logged, never fatal: the
// submission is already committed.
func (s *deliveryNoteService) recordSubmission(ctx context.Context, note *model.DeliveryNote, kind model.SubmissionKind, wave int, submittedBy string, updates []LineUpdate) {
	details, err := json.Marshal(updates)
	if err != nil {
		s.log.WithError(err).Error("Failed to marshal submission details")
		details = []byte("[]")
	}

	event := &model.SubmissionEvent{
		DeliveryNoteID: note.UUID,
		NoDN:           note.NoDN,
		Kind:           kind,
		Wave:           wave,
		SubmittedBy:    submittedBy,
		Details:        details,
	}
	if _, err := s.events.Create(ctx, event); err != nil {
		s.log.WithError(err).WithField("no_dn", note.NoDN).Error("Failed to record submission event")
		return
	}

	message := map[string]interface{}{
		"no_dn":        note.NoDN,
		"po_no":        note.PONo,
		"kind":         kind,
		"wave":         wave,
		"submitted_by": submittedBy,
		"updates":      updates,
		"submitted_at": event.CreatedAt,
	}
	if err := s.bus.PublishMessage(ctx, message, s.erpQueue); err != nil {
		s.log.WithError(err).WithField("no_dn", note.NoDN).Error("Failed to publish submission to ERP queue")
	}

	doc, err := json.Marshal(event)
	if err == nil {
		if err := s.search.IndexSubmission(ctx, event.UUID, doc); err != nil {
			s.log.WithError(err).WithField("no_dn", note.NoDN).Error("Failed to index submission")
		}
	}
}

// versionToken derives the optimistic concurrency token clients echo back
// on submission.
func versionToken(note *model.DeliveryNote) string {
	return strconv.FormatInt(note.UpdatedAt.UnixNano(), 10)
}

func waveKey(wave int) string {
	return fmt.Sprintf("wave_%d", wave)
}

func assembleSnapshot(note *model.DeliveryNote) *SnapshotResponse {
	resp := &SnapshotResponse{
		NoDN:             note.NoDN,
		PONo:             note.PONo,
		SupplierCode:     note.SupplierCode,
		PlanDeliveryDate: note.PlanDeliveryDate.Format("2006-01-02"),
		ConfirmUpdateAt:  note.ConfirmUpdateAt,
		DriverName:       note.DriverName,
		PlatNumber:       note.PlatNumber,
		ConfirmAt:        make(map[string]time.Time, len(note.ConfirmAt)),
		Status:           note.Status.String(),
		Detail:           make([]SnapshotLineResponse, 0, len(note.Lines)),
		Version:          versionToken(note),
	}
	for wave, ts := range note.ConfirmAt {
		resp.ConfirmAt[waveKey(wave)] = ts
	}
	for _, line := range note.Lines {
		out := make(map[string][]int64, len(line.Outstanding))
		for wave, qty := range line.Outstanding {
			out[waveKey(wave)] = []int64{qty}
		}
		resp.Detail = append(resp.Detail, SnapshotLineResponse{
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
			Outstanding: out,
		})
	}
	return resp
}
