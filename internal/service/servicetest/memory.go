// Package servicetest provides an in-memory implementation of the
// service storage ports. It mirrors the MySQL schema's guarantees: unique
// emails, names and plates, RESTRICT foreign keys and counter updates in
// the same step as the ledger write.
package servicetest

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/cane-truck-registry/internal/model"
	"github.com/iliyamo/cane-truck-registry/internal/queue"
	"github.com/iliyamo/cane-truck-registry/internal/repository"
	"github.com/iliyamo/cane-truck-registry/internal/service"
)

// Store holds every table. Views returned by Users, References, Trucks and
// Stats share it.
type Store struct {
	mu     sync.Mutex
	nextID uint64
	users  map[uint64]*model.User
	refs   map[model.ReferenceKind]map[uint64]*model.Reference
	trucks map[uint64]*model.Truck

	// TouchErr, when set, is returned by TouchLastLogin.
	TouchErr error
}

func NewStore() *Store {
	s := &Store{
		users:  map[uint64]*model.User{},
		refs:   map[model.ReferenceKind]map[uint64]*model.Reference{},
		trucks: map[uint64]*model.Truck{},
	}
	for _, k := range model.ReferenceKinds {
		s.refs[k] = map[uint64]*model.Reference{}
	}
	return s
}

func (s *Store) id() uint64 {
	s.nextID++
	return s.nextID
}

// Users returns the identity store view.
func (s *Store) Users() *UserStore { return &UserStore{s: s} }

// References returns the view for one kind.
func (s *Store) References(kind model.ReferenceKind) *ReferenceStore {
	return &ReferenceStore{s: s, kind: kind}
}

// ReferenceMap returns all three reference views keyed by kind.
func (s *Store) ReferenceMap() service.References {
	out := service.References{}
	for _, k := range model.ReferenceKinds {
		out[k] = s.References(k)
	}
	return out
}

// Trucks returns the ledger view.
func (s *Store) Trucks() *TruckStore { return &TruckStore{s: s} }

// Stats returns the aggregation view.
func (s *Store) Stats() *StatsStore { return &StatsStore{s: s} }

// AddUser inserts u as-is (PasswordHash included) and returns the stored copy.
func (s *Store) AddUser(u model.User) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.id()
	u.Email = strings.ToLower(u.Email)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	s.users[u.ID] = &u
	cp := u
	return &cp
}

// AddReference inserts an entity and returns a copy.
func (s *Store) AddReference(kind model.ReferenceKind, name string, active bool) *model.Reference {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &model.Reference{ID: s.id(), Kind: kind, Name: name, IsActive: active, CreatedAt: time.Now()}
	s.refs[kind][e.ID] = e
	cp := *e
	return &cp
}

// Reference returns a copy of the stored entity, or nil.
func (s *Store) Reference(kind model.ReferenceKind, id uint64) *model.Reference {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.refs[kind][id]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

// SetCounter overwrites the cached total_trucks of an entity.
func (s *Store) SetCounter(kind model.ReferenceKind, id uint64, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.refs[kind][id]; ok {
		e.TotalTrucks = n
	}
}

// SetTruck applies fn to the stored truck, for arranging test state.
func (s *Store) SetTruck(id uint64, fn func(t *model.Truck)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.trucks[id]; ok {
		fn(t)
	}
}

// UserStore implements service.UserStore.
type UserStore struct{ s *Store }

func (v *UserStore) copyUser(u *model.User) *model.User {
	cp := *u
	if u.HasGate() {
		if g, ok := v.s.refs[model.KindGate][*u.GateID]; ok {
			cp.GateName = g.Name
		}
	}
	return &cp
}

func (v *UserStore) GetByID(_ context.Context, id uint64) (*model.User, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	u, ok := v.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return v.copyUser(u), nil
}

func (v *UserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range v.s.users {
		if u.Email == email {
			return v.copyUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (v *UserStore) List(_ context.Context) ([]*model.User, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := make([]*model.User, 0, len(v.s.users))
	for _, u := range v.s.users {
		out = append(out, v.copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (v *UserStore) check(u *model.User) error {
	for _, o := range v.s.users {
		if o.ID != u.ID && o.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	if u.HasGate() {
		if _, ok := v.s.refs[model.KindGate][*u.GateID]; !ok {
			return repository.ErrMissingParent
		}
	}
	return nil
}

func (v *UserStore) Create(_ context.Context, u *model.User) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if err := v.check(u); err != nil {
		return err
	}
	u.ID = v.s.id()
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	cp := *u
	v.s.users[u.ID] = &cp
	return nil
}

func (v *UserStore) Update(_ context.Context, u *model.User) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	cur, ok := v.s.users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if err := v.check(u); err != nil {
		return err
	}
	cp := *u
	cp.PasswordHash = cur.PasswordHash
	cp.UpdatedAt = time.Now()
	v.s.users[u.ID] = &cp
	return nil
}

func (v *UserStore) UpdatePassword(_ context.Context, id uint64, hash string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	u, ok := v.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (v *UserStore) TouchLastLogin(_ context.Context, id uint64, at time.Time) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if v.s.TouchErr != nil {
		return v.s.TouchErr
	}
	if u, ok := v.s.users[id]; ok {
		t := at
		u.LastLoginAt = &t
	}
	return nil
}

func (v *UserStore) Delete(_ context.Context, id uint64) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.users[id]; !ok {
		return repository.ErrNotFound
	}
	for _, t := range v.s.trucks {
		if t.RegisteredBy == id {
			return repository.ErrReferenced
		}
	}
	delete(v.s.users, id)
	return nil
}

// ReferenceStore implements service.ReferenceStore for one kind.
type ReferenceStore struct {
	s    *Store
	kind model.ReferenceKind
}

func (v *ReferenceStore) Kind() model.ReferenceKind { return v.kind }

func (v *ReferenceStore) List(_ context.Context, activeOnly bool) ([]*model.Reference, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := make([]*model.Reference, 0)
	for _, e := range v.s.refs[v.kind] {
		if activeOnly && !e.IsActive {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v *ReferenceStore) GetByID(_ context.Context, id uint64) (*model.Reference, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	e, ok := v.s.refs[v.kind][id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (v *ReferenceStore) nameTaken(name string, excludeID uint64) bool {
	for _, e := range v.s.refs[v.kind] {
		if e.ID != excludeID && e.Name == name {
			return true
		}
	}
	return false
}

func (v *ReferenceStore) NameTaken(_ context.Context, name string, excludeID uint64) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.nameTaken(name, excludeID), nil
}

func (v *ReferenceStore) Create(_ context.Context, e *model.Reference) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if v.nameTaken(e.Name, 0) {
		return repository.ErrDuplicate
	}
	e.ID = v.s.id()
	e.Kind = v.kind
	e.TotalTrucks = 0
	e.CreatedAt, e.UpdatedAt = time.Now(), time.Now()
	cp := *e
	v.s.refs[v.kind][e.ID] = &cp
	return nil
}

func (v *ReferenceStore) Update(_ context.Context, e *model.Reference) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	cur, ok := v.s.refs[v.kind][e.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if v.nameTaken(e.Name, e.ID) {
		return repository.ErrDuplicate
	}
	cp := *e
	cp.TotalTrucks = cur.TotalTrucks
	cp.UpdatedAt = time.Now()
	v.s.refs[v.kind][e.ID] = &cp
	return nil
}

func (v *ReferenceStore) Delete(_ context.Context, id uint64) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.refs[v.kind][id]; !ok {
		return repository.ErrNotFound
	}
	for _, t := range v.s.trucks {
		if truckRef(t, v.kind) == id {
			return repository.ErrReferenced
		}
	}
	if v.kind == model.KindGate {
		for _, u := range v.s.users {
			if u.HasGate() && *u.GateID == id {
				return repository.ErrReferenced
			}
		}
	}
	delete(v.s.refs[v.kind], id)
	return nil
}

func truckRef(t *model.Truck, kind model.ReferenceKind) uint64 {
	switch kind {
	case model.KindContractor:
		return t.ContractorID
	case model.KindFactory:
		return t.FactoryID
	}
	return t.GateID
}

// TruckStore implements service.TruckStore.
type TruckStore struct{ s *Store }

func (v *TruckStore) joined(t *model.Truck) *model.Truck {
	cp := *t
	if e, ok := v.s.refs[model.KindContractor][t.ContractorID]; ok {
		cp.ContractorName = e.Name
	}
	if e, ok := v.s.refs[model.KindFactory][t.FactoryID]; ok {
		cp.FactoryName = e.Name
	}
	if e, ok := v.s.refs[model.KindGate][t.GateID]; ok {
		cp.GateName = e.Name
	}
	if u, ok := v.s.users[t.RegisteredBy]; ok {
		cp.RegisteredByName = u.Name
	}
	return &cp
}

func (v *TruckStore) plateTaken(plate int64, excludeID uint64) bool {
	for _, t := range v.s.trucks {
		if t.ID != excludeID && t.PlateNumber == plate {
			return true
		}
	}
	return false
}

func (v *TruckStore) parentsExist(t *model.Truck) bool {
	for _, k := range model.ReferenceKinds {
		if _, ok := v.s.refs[k][truckRef(t, k)]; !ok {
			return false
		}
	}
	_, ok := v.s.users[t.RegisteredBy]
	return ok
}

// bump moves the counters of every reference t points at. Callers hold mu.
func (s *Store) bump(t *model.Truck, delta int64) {
	for _, k := range model.ReferenceKinds {
		if e, ok := s.refs[k][truckRef(t, k)]; ok {
			e.TotalTrucks += delta
			if e.TotalTrucks < 0 {
				e.TotalTrucks = 0
			}
		}
	}
}

func (v *TruckStore) Create(_ context.Context, t *model.Truck) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if v.plateTaken(t.PlateNumber, 0) {
		return repository.ErrDuplicate
	}
	if !v.parentsExist(t) {
		return repository.ErrMissingParent
	}
	t.ID = v.s.id()
	t.CreatedAt, t.UpdatedAt = t.RegisteredAt, t.RegisteredAt
	cp := *t
	v.s.trucks[t.ID] = &cp
	v.s.bump(&cp, 1)
	return nil
}

func (v *TruckStore) GetByID(_ context.Context, id uint64) (*model.Truck, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	t, ok := v.s.trucks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return v.joined(t), nil
}

func (v *TruckStore) PlateTaken(_ context.Context, plate int64, excludeID uint64) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.plateTaken(plate, excludeID), nil
}

func (v *TruckStore) Update(_ context.Context, prev, next *model.Truck) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	cur, ok := v.s.trucks[next.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if v.plateTaken(next.PlateNumber, next.ID) {
		return repository.ErrDuplicate
	}
	if !v.parentsExist(next) {
		return repository.ErrMissingParent
	}
	v.s.bump(prev, -1)
	cur.PlateNumber = next.PlateNumber
	cur.ContractorID = next.ContractorID
	cur.FactoryID = next.FactoryID
	cur.GateID = next.GateID
	cur.FactoryCardNumber = next.FactoryCardNumber
	cur.DeviceCardNumber = next.DeviceCardNumber
	cur.Notes = next.Notes
	cur.UpdatedAt = time.Now()
	v.s.bump(cur, 1)
	return nil
}

func (v *TruckStore) UpdateStatus(_ context.Context, id uint64, from, to model.TruckStatus, deliveredAt *time.Time) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	t, ok := v.s.trucks[id]
	if !ok || t.Status != from {
		return repository.ErrConflict
	}
	t.Status = to
	if deliveredAt != nil {
		d := *deliveredAt
		t.DeliveredAt = &d
	}
	return nil
}

func matches(t *model.Truck, f model.TruckFilter) bool {
	switch {
	case f.PlateNumber != nil && t.PlateNumber != *f.PlateNumber,
		f.ContractorID != 0 && t.ContractorID != f.ContractorID,
		f.FactoryID != 0 && t.FactoryID != f.FactoryID,
		f.GateID != 0 && t.GateID != f.GateID,
		f.RegisteredBy != 0 && t.RegisteredBy != f.RegisteredBy,
		f.Status != "" && t.Status != f.Status,
		f.From != nil && t.RegisteredAt.Before(*f.From),
		f.To != nil && t.RegisteredAt.After(*f.To):
		return false
	}
	if f.CardSearch != "" {
		q := strings.ToLower(f.CardSearch)
		fc := strconv.FormatInt(t.FactoryCardNumber, 10)
		dc := strconv.FormatInt(t.DeviceCardNumber, 10)
		if !strings.Contains(fc, q) && !strings.Contains(dc, q) {
			return false
		}
	}
	return true
}

func (v *TruckStore) Search(_ context.Context, f model.TruckFilter) ([]*model.Truck, int, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	all := make([]*model.Truck, 0)
	for _, t := range v.s.trucks {
		if matches(t, f) {
			all = append(all, v.joined(t))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].RegisteredAt.Equal(all[j].RegisteredAt) {
			return all[i].RegisteredAt.After(all[j].RegisteredAt)
		}
		return all[i].ID > all[j].ID
	})
	total := len(all)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

// StatsStore implements service.StatsStore.
type StatsStore struct{ s *Store }

func inScope(t *model.Truck, sc model.StatsScope) bool {
	switch {
	case sc.Since != nil && t.RegisteredAt.Before(*sc.Since),
		sc.ContractorID != 0 && t.ContractorID != sc.ContractorID,
		sc.FactoryID != 0 && t.FactoryID != sc.FactoryID,
		sc.GateID != 0 && t.GateID != sc.GateID,
		sc.RegisteredBy != 0 && t.RegisteredBy != sc.RegisteredBy:
		return false
	}
	return true
}

func (v *StatsStore) Count(_ context.Context, sc model.StatsScope) (int64, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var n int64
	for _, t := range v.s.trucks {
		if inScope(t, sc) {
			n++
		}
	}
	return n, nil
}

func (v *StatsStore) GroupByReference(_ context.Context, kind model.ReferenceKind, sc model.StatsScope) ([]model.Bucket, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	counts := map[uint64]int64{}
	for _, t := range v.s.trucks {
		if inScope(t, sc) {
			counts[truckRef(t, kind)]++
		}
	}
	out := make([]model.Bucket, 0, len(counts))
	for id, n := range counts {
		b := model.Bucket{ID: id, Count: n}
		if e, ok := v.s.refs[kind][id]; ok {
			b.Name = e.Name
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (v *StatsStore) GroupByDay(_ context.Context, sc model.StatsScope) ([]model.DayBucket, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	counts := map[string]int64{}
	for _, t := range v.s.trucks {
		if inScope(t, sc) {
			counts[t.RegisteredAt.UTC().Format("2006-01-02")]++
		}
	}
	out := make([]model.DayBucket, 0, len(counts))
	for d, n := range counts {
		out = append(out, model.DayBucket{Day: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

func (v *StatsStore) RebuildCounters(_ context.Context) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, k := range model.ReferenceKinds {
		for _, e := range v.s.refs[k] {
			e.TotalTrucks = 0
		}
	}
	for _, t := range v.s.trucks {
		v.s.bump(t, 1)
	}
	return nil
}

// Publisher records published events. Err, when set, fails every publish.
type Publisher struct {
	mu     sync.Mutex
	Events []queue.TruckEvent
	Err    error
}

func (p *Publisher) Publish(_ context.Context, ev queue.TruckEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Events = append(p.Events, ev)
	return nil
}

// Types returns the recorded event types in order.
func (p *Publisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.Events))
	for i, ev := range p.Events {
		out[i] = ev.Type
	}
	return out
}

// Cache records purged kinds.
type Cache struct {
	mu     sync.Mutex
	Purged []model.ReferenceKind
}

func (c *Cache) Purge(_ context.Context, kind model.ReferenceKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Purged = append(c.Purged, kind)
	return nil
}
