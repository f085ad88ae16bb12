package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cane-truck-registry/internal/model"
	"github.com/iliyamo/cane-truck-registry/internal/queue"
	"github.com/iliyamo/cane-truck-registry/internal/repository"
)

// LedgerPolicy holds the deployer-tunable rules of the ledger.
type LedgerPolicy struct {
	EditWindow      time.Duration // edits allowed until RegisteredAt+EditWindow
	RequireEditFlag bool          // also require Truck.CanEdit
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultLedgerPolicy is a 24h edit window and 50 rows per page.
var DefaultLedgerPolicy = LedgerPolicy{
	EditWindow:      24 * time.Hour,
	RequireEditFlag: true,
	DefaultPageSize: 50,
	MaxPageSize:     200,
}

// TruckLedger owns truck registrations. Plate uniqueness and the
// counter side effects are enforced by the TruckStore in storage; the
// ledger adds ownership, the edit window and the status machine.
type TruckLedger struct {
	Trucks     TruckStore
	References References
	Stats      StatsStore
	Events     EventPublisher
	Cache      ListCache // optional; purged when counters move
	Policy     LedgerPolicy
	Log        logrus.FieldLogger
	Now        func() time.Time
}

func NewTruckLedger(trucks TruckStore, refs References, stats StatsStore, events EventPublisher, policy LedgerPolicy, log logrus.FieldLogger) *TruckLedger {
	return &TruckLedger{
		Trucks:     trucks,
		References: refs,
		Stats:      stats,
		Events:     events,
		Policy:     policy,
		Log:        log,
		Now:        time.Now,
	}
}

// RegisterInput is the registration form. Numeric fields arrive as
// strings so that both JSON numbers and numeric strings are accepted.
type RegisterInput struct {
	PlateNumber       string
	ContractorID      uint64
	FactoryID         uint64
	GateID            uint64
	FactoryCardNumber string
	DeviceCardNumber  string
	Notes             string
}

// EditInput lists the editable fields. Nil leaves a field unchanged.
type EditInput struct {
	PlateNumber       *string
	ContractorID      *uint64
	FactoryID         *uint64
	GateID            *uint64
	FactoryCardNumber *string
	DeviceCardNumber  *string
	Notes             *string
}

// ListQuery is the client-facing truck filter.
type ListQuery struct {
	Search       string
	ContractorID uint64
	FactoryID    uint64
	GateID       uint64
	Status       string
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
	Mine         bool // restrict to the actor's own registrations
}

// TruckPage is one page of a listing.
type TruckPage struct {
	Items    []*model.Truck
	Total    int
	Page     int
	PageSize int
	Pages    int
}

// MyStats summarizes the registrations of one military user.
type MyStats struct {
	TotalTrucks int64
	ByFactory   []model.Bucket
	Today       int64
}

// Register records a new truck for a military user. Contractor, factory
// and gate must exist and be active; the plate must not exist anywhere
// in the ledger. The gate defaults to the actor's assigned gate.
func (l *TruckLedger) Register(ctx context.Context, actor *model.User, in RegisterInput) (*model.Truck, error) {
	if err := Authorize(actor, model.CapRegisterTruck); err != nil {
		return nil, err
	}
	if in.GateID == 0 && actor.HasGate() {
		in.GateID = *actor.GateID
	}

	plate, err := parsePlate(in.PlateNumber)
	if err != nil {
		return nil, err
	}
	ve := &ValidationError{}
	factoryCard := parseCard(ve, "factoryCardNumber", in.FactoryCardNumber)
	deviceCard := parseCard(ve, "deviceCardNumber", in.DeviceCardNumber)
	requireID(ve, "contractorId", in.ContractorID)
	requireID(ve, "factoryId", in.FactoryID)
	requireID(ve, "gateId", in.GateID)
	notes := strings.TrimSpace(in.Notes)
	if err := ve.Err(); err != nil {
		return nil, err
	}

	contractor, err := l.resolveActive(ctx, model.KindContractor, in.ContractorID)
	if err != nil {
		return nil, err
	}
	factory, err := l.resolveActive(ctx, model.KindFactory, in.FactoryID)
	if err != nil {
		return nil, err
	}
	gate, err := l.resolveActive(ctx, model.KindGate, in.GateID)
	if err != nil {
		return nil, err
	}

	taken, err := l.Trucks.PlateTaken(ctx, plate, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrDuplicatePlate
	}

	now := l.Now().UTC()
	t := &model.Truck{
		PlateNumber:       plate,
		ContractorID:      contractor.ID,
		FactoryID:         factory.ID,
		GateID:            gate.ID,
		FactoryCardNumber: factoryCard,
		DeviceCardNumber:  deviceCard,
		RegisteredBy:      actor.ID,
		Status:            model.StatusRegistered,
		RegisteredAt:      now,
		EditDeadline:      now.Add(l.Policy.EditWindow),
		Notes:             notes,
		CanEdit:           true,
	}
	if err := l.Trucks.Create(ctx, t); err != nil {
		return nil, l.writeErr(err)
	}
	t.ContractorName = contractor.Name
	t.FactoryName = factory.Name
	t.GateName = gate.Name
	t.RegisteredByName = actor.Name

	l.Log.WithFields(logrus.Fields{"truck_id": t.ID, "plate": t.PlateNumber, "user_id": actor.ID}).Info("truck registered")
	purgeLists(ctx, l.Cache, l.Log, model.ReferenceKinds...)
	l.publish(ctx, queue.EventTruckRegistered, t, "")
	return t, nil
}

// Get returns one truck. Military users only see their own.
func (l *TruckLedger) Get(ctx context.Context, actor *model.User, id uint64) (*model.Truck, error) {
	all := actor != nil && actor.Role.Can(model.CapViewAllTrucks)
	if !all {
		if err := Authorize(actor, model.CapViewOwnTrucks); err != nil {
			return nil, err
		}
	}
	t, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !all && t.RegisteredBy != actor.ID {
		return nil, ErrForbidden
	}
	return t, nil
}

// Edit changes a truck registered by actor while its edit window is
// open. Ownership is checked before the window, so editing another
// user's truck is always ErrForbidden.
func (l *TruckLedger) Edit(ctx context.Context, actor *model.User, id uint64, in EditInput) (*model.Truck, error) {
	if err := Authorize(actor, model.CapEditOwnTruck); err != nil {
		return nil, err
	}
	prev, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if prev.RegisteredBy != actor.ID {
		return nil, ErrForbidden
	}
	if !prev.Editable(l.Now(), l.Policy.RequireEditFlag) {
		return nil, ErrEditWindowExpired
	}

	next := *prev
	ve := &ValidationError{}
	if in.PlateNumber != nil {
		plate, err := parsePlate(*in.PlateNumber)
		if err != nil {
			return nil, err
		}
		next.PlateNumber = plate
	}
	if in.FactoryCardNumber != nil {
		next.FactoryCardNumber = parseCard(ve, "factoryCardNumber", *in.FactoryCardNumber)
	}
	if in.DeviceCardNumber != nil {
		next.DeviceCardNumber = parseCard(ve, "deviceCardNumber", *in.DeviceCardNumber)
	}
	if in.Notes != nil {
		next.Notes = strings.TrimSpace(*in.Notes)
	}
	if in.ContractorID != nil {
		requireID(ve, "contractorId", *in.ContractorID)
		next.ContractorID = *in.ContractorID
	}
	if in.FactoryID != nil {
		requireID(ve, "factoryId", *in.FactoryID)
		next.FactoryID = *in.FactoryID
	}
	if in.GateID != nil {
		requireID(ve, "gateId", *in.GateID)
		next.GateID = *in.GateID
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}

	// Moving a truck to another reference requires the target to be active.
	var moved []model.ReferenceKind
	for _, ch := range []struct {
		kind          model.ReferenceKind
		before, after uint64
		name          *string
	}{
		{model.KindContractor, prev.ContractorID, next.ContractorID, &next.ContractorName},
		{model.KindFactory, prev.FactoryID, next.FactoryID, &next.FactoryName},
		{model.KindGate, prev.GateID, next.GateID, &next.GateName},
	} {
		if ch.before == ch.after {
			continue
		}
		ref, err := l.resolveActive(ctx, ch.kind, ch.after)
		if err != nil {
			return nil, err
		}
		*ch.name = ref.Name
		moved = append(moved, ch.kind)
	}

	if next.PlateNumber != prev.PlateNumber {
		taken, err := l.Trucks.PlateTaken(ctx, next.PlateNumber, next.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrDuplicatePlate
		}
	}

	if err := l.Trucks.Update(ctx, prev, &next); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, l.writeErr(err)
	}

	purgeLists(ctx, l.Cache, l.Log, moved...)

	out, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	l.publish(ctx, queue.EventTruckUpdated, out, "")
	return out, nil
}

// Transition moves a truck along the status machine. Admins may move
// any truck; military users only their own. Delivered stamps
// DeliveredAt. The edit window does not apply.
func (l *TruckLedger) Transition(ctx context.Context, actor *model.User, id uint64, status string) (*model.Truck, error) {
	if err := Authorize(actor, model.CapTransitionTruck); err != nil {
		return nil, err
	}
	to, ok := model.ParseTruckStatus(status)
	if !ok {
		ve := &ValidationError{}
		ve.Add("status", "status must be one of registered, in_transit, delivered, cancelled")
		return nil, ve
	}
	t, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.Can(model.CapViewAllTrucks) && t.RegisteredBy != actor.ID {
		return nil, ErrForbidden
	}
	from := t.Status
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	var deliveredAt *time.Time
	if to == model.StatusDelivered {
		now := l.Now().UTC()
		deliveredAt = &now
	}
	if err := l.Trucks.UpdateStatus(ctx, id, from, to, deliveredAt); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
		}
		return nil, err
	}

	out, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	l.Log.WithFields(logrus.Fields{"truck_id": id, "from": from, "to": to, "user_id": actor.ID}).Info("truck status changed")
	l.publish(ctx, queue.EventTruckStatusChanged, out, string(from))
	return out, nil
}

// List returns a page of trucks, newest registration first. Actors
// without the view-all capability only ever see their own trucks.
func (l *TruckLedger) List(ctx context.Context, actor *model.User, q ListQuery) (*TruckPage, error) {
	all := actor != nil && actor.Role.Can(model.CapViewAllTrucks)
	if !all {
		if err := Authorize(actor, model.CapViewOwnTrucks); err != nil {
			return nil, err
		}
	}

	f := model.TruckFilter{
		ContractorID: q.ContractorID,
		FactoryID:    q.FactoryID,
		GateID:       q.GateID,
		From:         q.From,
		To:           q.To,
	}
	if !all || q.Mine {
		f.RegisteredBy = actor.ID
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			f.PlateNumber = &n
		} else {
			f.CardSearch = s
		}
	}
	if q.Status != "" {
		st, ok := model.ParseTruckStatus(q.Status)
		if !ok {
			ve := &ValidationError{}
			ve.Add("status", "unknown status")
			return nil, ve
		}
		f.Status = st
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		ve := &ValidationError{}
		ve.Add("dateTo", "dateTo must not be before dateFrom")
		return nil, ve
	}
	var err error
	if f.Page, f.PageSize, err = l.paging(q.Page, q.PageSize); err != nil {
		return nil, err
	}

	items, total, err := l.Trucks.Search(ctx, f)
	if err != nil {
		return nil, err
	}
	return &TruckPage{
		Items:    items,
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
		Pages:    int(math.Ceil(float64(total) / float64(f.PageSize))),
	}, nil
}

// MyStats returns the actor's totals and per-factory breakdown.
func (l *TruckLedger) MyStats(ctx context.Context, actor *model.User) (*MyStats, error) {
	if err := Authorize(actor, model.CapViewOwnTrucks); err != nil {
		return nil, err
	}
	scope := model.StatsScope{RegisteredBy: actor.ID}
	total, err := l.Stats.Count(ctx, scope)
	if err != nil {
		return nil, err
	}
	byFactory, err := l.Stats.GroupByReference(ctx, model.KindFactory, scope)
	if err != nil {
		return nil, err
	}
	now := l.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	scope.Since = &midnight
	today, err := l.Stats.Count(ctx, scope)
	if err != nil {
		return nil, err
	}
	return &MyStats{TotalTrucks: total, ByFactory: byFactory, Today: today}, nil
}

// paging applies the page defaults and limits. Pages whose offset would
// not fit in an int are rejected.
func (l *TruckLedger) paging(page, size int) (int, int, error) {
	if page < 1 {
		page = 1
	}
	def, limit := l.Policy.DefaultPageSize, l.Policy.MaxPageSize
	if def < 1 {
		def = DefaultLedgerPolicy.DefaultPageSize
	}
	if limit < def {
		limit = def
	}
	if size < 1 {
		size = def
	}
	if size > limit {
		size = limit
	}
	if page-1 > math.MaxInt/size {
		ve := &ValidationError{}
		ve.Add("page", "page is out of range")
		return 0, 0, ve
	}
	return page, size, nil
}

func (l *TruckLedger) load(ctx context.Context, id uint64) (*model.Truck, error) {
	t, err := l.Trucks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// resolveActive loads a reference that a truck is about to point to.
func (l *TruckLedger) resolveActive(ctx context.Context, kind model.ReferenceKind, id uint64) (*model.Reference, error) {
	store, ok := l.References[kind]
	if !ok {
		return nil, fmt.Errorf("no store for %s", kind)
	}
	ref, err := store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s %d: %w", kind, id, ErrReferenceNotFound)
		}
		return nil, err
	}
	if !ref.IsActive {
		return nil, fmt.Errorf("%s %d: %w", kind, id, ErrReferenceNotFound)
	}
	return ref, nil
}

func (l *TruckLedger) writeErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return ErrDuplicatePlate
	case errors.Is(err, repository.ErrMissingParent):
		return ErrReferenceNotFound
	}
	return err
}

// publish emits ev without letting broker trouble reach the caller.
func (l *TruckLedger) publish(ctx context.Context, typ string, t *model.Truck, previous string) {
	if l.Events == nil {
		return
	}
	ev := queue.TruckEvent{
		Type:           typ,
		TruckID:        t.ID,
		PlateNumber:    t.PlateNumber,
		ContractorID:   t.ContractorID,
		ContractorName: t.ContractorName,
		FactoryID:      t.FactoryID,
		FactoryName:    t.FactoryName,
		GateID:         t.GateID,
		GateName:       t.GateName,
		RegisteredBy:   t.RegisteredBy,
		Status:         string(t.Status),
		PreviousStatus: previous,
		OccurredAt:     l.Now().UTC().Format(time.RFC3339),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := l.Events.Publish(pctx, ev); err != nil {
		l.Log.WithError(err).WithFields(logrus.Fields{"event": typ, "truck_id": t.ID}).Warn("ledger: publish event failed")
	}
}

func parsePlate(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, ErrInvalidPlateNumber
	}
	return n, nil
}

func parseCard(ve *ValidationError, field, s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		ve.Add(field, field+" is required")
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		ve.Add(field, field+" must be an integer")
		return 0
	}
	return n
}

func requireID(ve *ValidationError, field string, id uint64) {
	if id == 0 {
		ve.Add(field, field+" is required")
	}
}
