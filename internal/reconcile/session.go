// Package reconcile implements the multi-wave confirmation state machine
// for a delivery note: Draft -> Confirmed -> OutstandingOpen(waveN) ->
// settled, with quantity invariants enforced before anything reaches the
// backend. The backend snapshot stays authoritative; every successful
// submission replaces the local snapshot with the one the backend returns.
package reconcile

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"example.com/supplierportal/services/deliverynote/internal/gateway"
	"example.com/supplierportal/services/deliverynote/internal/ledger"
	"example.com/supplierportal/services/deliverynote/internal/model"
)

// Session drives the reconciliation of one delivery note. All methods are
// safe for concurrent use; at most one backend mutation is in flight at a
// time and a second command during that window gets ErrBusy.
type Session struct {
	mu   sync.Mutex
	busy bool

	gw   gateway.Client
	log  *logrus.Logger
	noDN string

	snap         *gateway.Snapshot
	state        State
	acknowledged bool

	driverName string
	platNumber string

	openWave int
	edits    map[string]int64
}

// NewSession creates a session for one delivery note. Call Load before
// issuing commands.
func NewSession(gw gateway.Client, noDN string, log *logrus.Logger) *Session {
	if log == nil {
		log = logrus.New()
	}
	return &Session{
		gw:    gw,
		log:   log,
		noDN:  noDN,
		state: StateDraft,
	}
}

// Load fetches the authoritative snapshot and derives the session state.
func (s *Session) Load(ctx context.Context) error {
	snap, err := s.gw.FetchSnapshot(ctx, s.noDN)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.applySnapshot(snap)
	return nil
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the last authoritative snapshot, which may be stale
// after a failed refetch.
func (s *Session) Snapshot() *gateway.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// OpenWave returns the wave being edited, or 0 when none is open.
func (s *Session) OpenWave() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openWave
}

// Edits returns a copy of the pending per-line quantities.
func (s *Session) Edits() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	edits := make(map[string]int64, len(s.edits))
	for detailNo, qty := range s.edits {
		edits[detailNo] = qty
	}
	return edits
}

// SetAcknowledged records the human-in-the-loop gate. Submits are blocked
// until this is true, regardless of data validity.
func (s *Session) SetAcknowledged(ack bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acknowledged = ack
}

// SetEdit overrides one line's pending quantity in the open editing scope.
func (s *Session) SetEdit(detailNo string, qty int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConfirmedEditing && s.state != StateOutstandingOpen {
		return &TransitionError{From: s.state, Command: "edit"}
	}
	if _, ok := s.edits[detailNo]; !ok {
		return ErrUnknownLine
	}
	s.edits[detailNo] = qty
	return nil
}

// Warnings lists lines whose open-wave seed went negative, meaning the
// supplier over-committed across earlier waves. The seed stays visible
// unclamped; bound validation still blocks a negative submission.
func (s *Session) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOutstandingOpen {
		return nil
	}
	var warnings []string
	for _, line := range s.snap.Lines {
		if ledger.SeedOutstanding(lineModel(line)) < 0 {
			warnings = append(warnings, line.DNDetailNo)
		}
	}
	sort.Strings(warnings)
	return warnings
}

// BeginConfirmation validates driver and plate and opens wave-1 editing
// with every line defaulted to its full requested quantity.
func (s *Session) BeginConfirmation(driverName, platNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateDraft || s.snap == nil {
		return &TransitionError{From: s.state, Command: "beginConfirmation"}
	}
	if err := ledger.ValidateDriverName(driverName); err != nil {
		return err
	}
	plate := ledger.ValidateLicensePlate(platNumber)
	if !plate.Valid {
		return ledger.NewValidationError(ledger.ReasonBadFormat, "plat_number", plate.Err)
	}

	s.driverName = driverName
	s.platNumber = plate.Normalized
	s.edits = make(map[string]int64, len(s.snap.Lines))
	for _, line := range s.snap.Lines {
		s.edits[line.DNDetailNo] = line.DNQty
	}
	s.acknowledged = false
	s.state = StateConfirmedEditing
	return nil
}

// SubmitConfirmation validates and submits the wave-1 quantities together
// with the staged driver info. On any gateway failure the state and the
// pending edits are untouched so the user can retry without re-entering
// data.
func (s *Session) SubmitConfirmation(ctx context.Context) error {
	cmd, err := s.beginSubmit(StateConfirmedEditing, "submitConfirmation")
	if err != nil {
		return err
	}

	if err := s.gw.UpdateDriverInfo(ctx, s.noDN, s.driverName, s.platNumber); err != nil {
		s.endSubmit(nil)
		return err
	}

	snap, err := s.gw.SubmitQuantities(ctx, cmd)
	if err != nil {
		s.endSubmit(nil)
		return err
	}

	s.log.WithFields(logrus.Fields{
		"no_dn": s.noDN,
		"wave":  1,
		"lines": len(cmd.Updates),
	}).Info("Confirmation submitted")
	s.endSubmit(snap)
	return nil
}

// CanOpenWave reports whether an outstanding wave could be opened right
// now. It is a guard, not an error: callers disable the control when false.
func (s *Session) CanOpenWave() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateSettled && s.snap != nil &&
		s.snap.ConfirmUpdateAt != nil && !allDelivered(s.snap)
}

// OpenOutstandingWave opens the next wave, seeding every line with its
// unclamped outstanding suggestion. Calling it again while a wave is open
// returns the same wave without changing state.
func (s *Session) OpenOutstandingWave() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateOutstandingOpen:
		return s.openWave, nil
	case StateDraft:
		return 0, ErrNotConfirmed
	case StateClosed:
		return 0, ErrWaveUnavailable
	case StateSettled:
		// fall through
	default:
		return 0, &TransitionError{From: s.state, Command: "openOutstandingWave"}
	}
	if allDelivered(s.snap) {
		return 0, ErrWaveUnavailable
	}

	lines := snapshotLines(s.snap)
	wave := ledger.NextWave(lines)
	s.edits = make(map[string]int64, len(lines))
	for _, line := range lines {
		s.edits[line.DNDetailNo] = ledger.SeedOutstanding(line)
	}
	s.openWave = wave
	s.acknowledged = false
	s.state = StateOutstandingOpen

	s.log.WithFields(logrus.Fields{
		"no_dn": s.noDN,
		"wave":  wave,
	}).Debug("Outstanding wave opened")
	return wave, nil
}

// SubmitOutstanding validates and submits the open wave's quantities,
// freezing the wave on success.
func (s *Session) SubmitOutstanding(ctx context.Context) error {
	cmd, err := s.beginSubmit(StateOutstandingOpen, "submitOutstanding")
	if err != nil {
		return err
	}
	wave := s.OpenWave()

	snap, err := s.gw.SubmitQuantities(ctx, cmd)
	if err != nil {
		s.endSubmit(nil)
		return err
	}

	s.log.WithFields(logrus.Fields{
		"no_dn": s.noDN,
		"wave":  wave,
		"lines": len(cmd.Updates),
	}).Info("Outstanding wave submitted")
	s.endSubmit(snap)
	return nil
}

// Cancel discards local edits and resynchronizes with the backend. It is
// not a local undo: other actors may have changed the note concurrently,
// so the snapshot is refetched. On fetch failure everything local is kept
// and the stale snapshot remains in place.
func (s *Session) Cancel(ctx context.Context) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.busy = true
	s.mu.Unlock()

	snap, err := s.gw.FetchSnapshot(ctx, s.noDN)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if err != nil {
		return err
	}
	s.applySnapshot(snap)
	return nil
}

// beginSubmit runs the shared submit guards and builds the update command.
// On success the session is flagged busy until endSubmit runs.
func (s *Session) beginSubmit(expected State, command string) (gateway.UpdateCommand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != expected {
		return gateway.UpdateCommand{}, &TransitionError{From: s.state, Command: command}
	}
	if s.busy {
		return gateway.UpdateCommand{}, ErrBusy
	}
	if !s.acknowledged {
		return gateway.UpdateCommand{}, ErrNotAcknowledged
	}

	requested := make(map[string]int64, len(s.snap.Lines))
	for _, line := range s.snap.Lines {
		requested[line.DNDetailNo] = line.DNQty
	}
	if err := ledger.ValidateQuantities(s.edits, requested); err != nil {
		return gateway.UpdateCommand{}, err
	}

	cmd := gateway.UpdateCommand{
		NoDN:    s.noDN,
		Version: s.snap.Version,
		Updates: make([]gateway.LineUpdate, 0, len(s.edits)),
	}
	for detailNo, qty := range s.edits {
		cmd.Updates = append(cmd.Updates, gateway.LineUpdate{DNDetailNo: detailNo, QtyConfirm: qty})
	}
	sort.Slice(cmd.Updates, func(i, j int) bool {
		return cmd.Updates[i].DNDetailNo < cmd.Updates[j].DNDetailNo
	})

	s.busy = true
	return cmd, nil
}

// endSubmit clears the busy flag and, when the backend accepted the
// submission, applies the returned snapshot.
func (s *Session) endSubmit(snap *gateway.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if snap != nil {
		s.applySnapshot(snap)
	}
}

// applySnapshot replaces local state with the authoritative snapshot.
// Callers hold the mutex.
func (s *Session) applySnapshot(snap *gateway.Snapshot) {
	s.snap = snap
	s.edits = nil
	s.openWave = 0
	s.acknowledged = false

	switch {
	case snap.ConfirmUpdateAt == nil:
		// Never confirmed; a note confirmed at zero has a timestamp.
		s.state = StateDraft
	case allDelivered(snap):
		s.state = StateClosed
	default:
		s.state = StateSettled
	}
}

func allDelivered(snap *gateway.Snapshot) bool {
	return ledger.AllDelivered(snapshotLines(snap))
}

func snapshotLines(snap *gateway.Snapshot) []model.DeliveryNoteLine {
	lines := make([]model.DeliveryNoteLine, 0, len(snap.Lines))
	for _, line := range snap.Lines {
		lines = append(lines, lineModel(line))
	}
	return lines
}

func lineModel(line gateway.SnapshotLine) model.DeliveryNoteLine {
	return model.DeliveryNoteLine{
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
		Outstanding: model.WaveQuantities(line.Outstanding),
	}
}
