package service

import (
	"apartment_parking/internal/domain"
	"apartment_parking/internal/repository"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gopkg.in/guregu/null.v4"
)

// memData is one consistent snapshot of every table.
type memData struct {
	nextID        int
	users         map[int]domain.User
	slots         map[int]domain.Slot
	visitors      map[int]domain.Visitor
	requests      map[int]domain.Request
	notifications map[int]domain.Notification
}

func newMemData() *memData {
	return &memData{
		users:         map[int]domain.User{},
		slots:         map[int]domain.Slot{},
		visitors:      map[int]domain.Visitor{},
		requests:      map[int]domain.Request{},
		notifications: map[int]domain.Notification{},
	}
}

func cloneMap[T any](src map[int]T) map[int]T {
	dst := make(map[int]T, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (d *memData) clone() *memData {
	return &memData{
		nextID:        d.nextID,
		users:         cloneMap(d.users),
		slots:         cloneMap(d.slots),
		visitors:      cloneMap(d.visitors),
		requests:      cloneMap(d.requests),
		notifications: cloneMap(d.notifications),
	}
}

func (d *memData) id() int {
	d.nextID++
	return d.nextID
}

func sortedKeys[T any](m map[int]T) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// memStore is an in-memory repository.Store. Transactions run serially on a
// copy of the data that replaces the original only on commit.
type memStore struct {
	mu   sync.Mutex
	data *memData
}

func newMemStore() *memStore {
	return &memStore{data: newMemData()}
}

func (s *memStore) snapshot() *memData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

func (s *memStore) Users() repository.UserRepository                 { return memUsers{s.snapshot()} }
func (s *memStore) Slots() repository.SlotRepository                 { return memSlots{s.snapshot()} }
func (s *memStore) Visitors() repository.VisitorRepository           { return memVisitors{s.snapshot()} }
func (s *memStore) Requests() repository.RequestRepository           { return memRequests{s.snapshot()} }
func (s *memStore) Notifications() repository.NotificationRepository { return memNotifications{s.snapshot()} }

func (s *memStore) WithTx(ctx context.Context, fn func(tx repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.data.clone()
	if err := fn(memTx{work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *memStore) Ping(ctx context.Context) error { return nil }

type memTx struct{ d *memData }

func (t memTx) Users() repository.UserRepository                 { return memUsers{t.d} }
func (t memTx) Slots() repository.SlotRepository                 { return memSlots{t.d} }
func (t memTx) Visitors() repository.VisitorRepository           { return memVisitors{t.d} }
func (t memTx) Requests() repository.RequestRepository           { return memRequests{t.d} }
func (t memTx) Notifications() repository.NotificationRepository { return memNotifications{t.d} }

// --- users ---

type memUsers struct{ d *memData }

func (r memUsers) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	for _, u := range r.d.users {
		if u.Email == user.Email {
			return nil, repository.ErrDuplicateEntry
		}
	}
	user.ID = r.d.id()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	r.d.users[user.ID] = *user
	return user, nil
}

func (r memUsers) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range r.d.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memUsers) FindByID(ctx context.Context, id int) (*domain.User, error) {
	u, ok := r.d.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r memUsers) FindAll(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	out := []domain.User{}
	for _, id := range sortedKeys(r.d.users) {
		u := r.d.users[id]
		if filter.Role == "" || u.Role == filter.Role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r memUsers) FindByAssignedSlot(ctx context.Context, slotID int) (*domain.User, error) {
	for _, u := range r.d.users {
		if u.AssignedSlotID.Valid && int(u.AssignedSlotID.Int64) == slotID {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memUsers) UpdateProfile(ctx context.Context, id int, patch domain.ProfilePatch) (*domain.User, error) {
	u, ok := r.d.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.FullName != nil {
		u.FullName = *patch.FullName
	}
	if patch.PhoneNumber != nil {
		u.PhoneNumber = null.NewString(*patch.PhoneNumber, *patch.PhoneNumber != "")
	}
	if patch.VehicleType != nil {
		u.VehicleType = null.NewString(*patch.VehicleType, *patch.VehicleType != "")
	}
	r.d.users[id] = u
	return &u, nil
}

func (r memUsers) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	u, ok := r.d.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Password = passwordHash
	r.d.users[id] = u
	return nil
}

func (r memUsers) SetAssignedSlot(ctx context.Context, id int, slotID null.Int) error {
	u, ok := r.d.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if slotID.Valid {
		for _, other := range r.d.users {
			if other.ID != id && other.AssignedSlotID == slotID {
				return repository.ErrSlotUnavailable
			}
		}
	}
	u.AssignedSlotID = slotID
	r.d.users[id] = u
	return nil
}

func (r memUsers) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	n := 0
	for _, u := range r.d.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (r memUsers) Delete(ctx context.Context, id int) error {
	if _, ok := r.d.users[id]; !ok {
		return repository.ErrNotFound
	}
	for _, v := range r.d.visitors {
		if v.ResidentID == id {
			return repository.ErrReferenced
		}
	}
	delete(r.d.users, id)
	return nil
}

// --- slots ---

type memSlots struct{ d *memData }

func (r memSlots) Create(ctx context.Context, slot *domain.Slot) (*domain.Slot, error) {
	for _, s := range r.d.slots {
		if s.SlotNumber == slot.SlotNumber {
			return nil, repository.ErrDuplicateEntry
		}
	}
	if slot.Status == "" {
		slot.Status = domain.SlotAvailable
	}
	slot.ID = r.d.id()
	slot.CreatedAt = time.Now().UTC()
	slot.UpdatedAt = slot.CreatedAt
	r.d.slots[slot.ID] = *slot
	return slot, nil
}

func (r memSlots) FindByID(ctx context.Context, id int) (*domain.Slot, error) {
	s, ok := r.d.slots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r memSlots) FindAll(ctx context.Context) ([]domain.SlotDetail, error) {
	out := []domain.SlotDetail{}
	for _, id := range sortedKeys(r.d.slots) {
		d := domain.SlotDetail{Slot: r.d.slots[id]}
		if u, err := (memUsers{r.d}).FindByAssignedSlot(ctx, id); err == nil {
			d.AssignedResidentID = null.IntFrom(int64(u.ID))
			d.AssignedResidentName = null.StringFrom(u.FullName)
		}
		out = append(out, d)
	}
	return out, nil
}

func (r memSlots) Update(ctx context.Context, id int, patch domain.SlotPatch) (*domain.Slot, error) {
	s, ok := r.d.slots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.SlotNumber != nil {
		s.SlotNumber = *patch.SlotNumber
	}
	if patch.SlotType != nil {
		s.SlotType = *patch.SlotType
	}
	r.d.slots[id] = s
	return &s, nil
}

func (r memSlots) Delete(ctx context.Context, id int) error {
	if _, ok := r.d.slots[id]; !ok {
		return repository.ErrNotFound
	}
	if _, err := (memUsers{r.d}).FindByAssignedSlot(ctx, id); err == nil {
		return repository.ErrReferenced
	}
	for _, v := range r.d.visitors {
		if v.SlotID.Valid && int(v.SlotID.Int64) == id {
			return repository.ErrReferenced
		}
	}
	for _, q := range r.d.requests {
		if q.SlotID == id {
			return repository.ErrReferenced
		}
	}
	delete(r.d.slots, id)
	return nil
}

func (r memSlots) CompareAndSetStatus(ctx context.Context, id int, from []domain.SlotStatus, to domain.SlotStatus) (*domain.Slot, error) {
	s, ok := r.d.slots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, f := range from {
		if s.Status == f {
			s.Status = to
			s.UpdatedAt = time.Now().UTC()
			r.d.slots[id] = s
			return &s, nil
		}
	}
	return nil, fmt.Errorf("%w: slot %s is %s", repository.ErrSlotUnavailable, s.SlotNumber, s.Status)
}

func (r memSlots) AllocateAvailable(ctx context.Context, slotType domain.VehicleType) (*domain.Slot, error) {
	for _, id := range sortedKeys(r.d.slots) {
		s := r.d.slots[id]
		if s.SlotType != slotType || s.Status != domain.SlotAvailable {
			continue
		}
		if _, err := (memUsers{r.d}).FindByAssignedSlot(ctx, id); err == nil {
			continue
		}
		if _, err := (memVisitors{r.d}).FindHolding(ctx, id); err == nil {
			continue
		}
		return r.CompareAndSetStatus(ctx, id, []domain.SlotStatus{domain.SlotAvailable}, domain.SlotOccupied)
	}
	return nil, repository.ErrSlotUnavailable
}

func (r memSlots) CountByStatus(ctx context.Context) (map[domain.SlotStatus]int, error) {
	counts := map[domain.SlotStatus]int{}
	for _, s := range r.d.slots {
		counts[s.Status]++
	}
	return counts, nil
}

// --- visitors ---

type memVisitors struct{ d *memData }

func (r memVisitors) Create(ctx context.Context, v *domain.Visitor) (*domain.Visitor, error) {
	if _, ok := r.d.users[v.ResidentID]; !ok {
		return nil, repository.ErrNotFound
	}
	v.ID = r.d.id()
	v.CreatedAt = time.Now().UTC()
	v.UpdatedAt = v.CreatedAt
	r.d.visitors[v.ID] = *v
	return v, nil
}

func (r memVisitors) FindByID(ctx context.Context, id int) (*domain.Visitor, error) {
	v, ok := r.d.visitors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

func (r memVisitors) FindAll(ctx context.Context, filter domain.VisitorFilter) ([]domain.VisitorDetail, error) {
	out := []domain.VisitorDetail{}
	for _, id := range sortedKeys(r.d.visitors) {
		v := r.d.visitors[id]
		if filter.ResidentID > 0 && v.ResidentID != filter.ResidentID {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, s := range filter.Statuses {
				match = match || v.Status == s
			}
			if !match {
				continue
			}
		}
		d := domain.VisitorDetail{Visitor: v}
		if u, ok := r.d.users[v.ResidentID]; ok {
			d.ResidentName = null.StringFrom(u.FullName)
		}
		if v.SlotID.Valid {
			if s, ok := r.d.slots[int(v.SlotID.Int64)]; ok {
				d.SlotNumber = null.StringFrom(s.SlotNumber)
			}
		}
		out = append(out, d)
	}
	if int(filter.Offset) >= len(out) {
		return []domain.VisitorDetail{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && int(filter.Limit) < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r memVisitors) Transition(ctx context.Context, v *domain.Visitor, from domain.VisitorStatus) (*domain.Visitor, error) {
	cur, ok := r.d.visitors[v.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if cur.Status != from {
		return nil, repository.ErrInvalidTransition
	}
	cur.Status = v.Status
	cur.SlotID = v.SlotID
	cur.ExitTime = v.ExitTime
	cur.UpdatedAt = time.Now().UTC()
	r.d.visitors[v.ID] = cur
	return &cur, nil
}

func (r memVisitors) FindHolding(ctx context.Context, slotID int) (*domain.Visitor, error) {
	for _, id := range sortedKeys(r.d.visitors) {
		v := r.d.visitors[id]
		if v.HoldsSlot() && int(v.SlotID.Int64) == slotID {
			return &v, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memVisitors) DeleteInStatus(ctx context.Context, id int, statuses []domain.VisitorStatus) (*domain.Visitor, error) {
	v, ok := r.d.visitors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, st := range statuses {
		if v.Status == st {
			delete(r.d.visitors, id)
			return &v, nil
		}
	}
	return nil, repository.ErrInvalidTransition
}

func (r memVisitors) DeleteByResident(ctx context.Context, residentID int) ([]domain.Visitor, error) {
	deleted := []domain.Visitor{}
	for _, id := range sortedKeys(r.d.visitors) {
		if v := r.d.visitors[id]; v.ResidentID == residentID {
			deleted = append(deleted, v)
			delete(r.d.visitors, id)
		}
	}
	return deleted, nil
}

func (r memVisitors) CountByStatus(ctx context.Context, status domain.VisitorStatus) (int, error) {
	n := 0
	for _, v := range r.d.visitors {
		if v.Status == status {
			n++
		}
	}
	return n, nil
}

// --- requests ---

type memRequests struct{ d *memData }

func (r memRequests) Create(ctx context.Context, req *domain.Request) (*domain.Request, error) {
	if _, ok := r.d.slots[req.SlotID]; !ok {
		return nil, repository.ErrNotFound
	}
	req.ID = r.d.id()
	req.CreatedAt = time.Now().UTC()
	req.UpdatedAt = req.CreatedAt
	r.d.requests[req.ID] = *req
	return req, nil
}

func (r memRequests) FindByID(ctx context.Context, id int) (*domain.Request, error) {
	q, ok := r.d.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &q, nil
}

func (r memRequests) FindAll(ctx context.Context, filter domain.RequestFilter) ([]domain.RequestDetail, error) {
	out := []domain.RequestDetail{}
	for _, id := range sortedKeys(r.d.requests) {
		q := r.d.requests[id]
		if filter.ResidentID > 0 && q.ResidentID != filter.ResidentID {
			continue
		}
		if filter.Status != "" && q.Status != filter.Status {
			continue
		}
		if filter.RequestType != "" && q.RequestType != filter.RequestType {
			continue
		}
		d := domain.RequestDetail{Request: q}
		if u, ok := r.d.users[q.ResidentID]; ok {
			d.ResidentName = null.StringFrom(u.FullName)
		}
		if s, ok := r.d.slots[q.SlotID]; ok {
			d.SlotNumber = null.StringFrom(s.SlotNumber)
		}
		out = append(out, d)
	}
	return out, nil
}

func (r memRequests) Transition(ctx context.Context, id int, from, to domain.RequestStatus) (*domain.Request, error) {
	q, ok := r.d.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if q.Status != from {
		return nil, repository.ErrInvalidTransition
	}
	q.Status = to
	r.d.requests[id] = q
	return &q, nil
}

func (r memRequests) DeleteByResident(ctx context.Context, residentID int) error {
	for id, q := range r.d.requests {
		if q.ResidentID == residentID {
			delete(r.d.requests, id)
		}
	}
	return nil
}

func (r memRequests) CountByStatus(ctx context.Context, status domain.RequestStatus) (int, error) {
	n := 0
	for _, q := range r.d.requests {
		if q.Status == status {
			n++
		}
	}
	return n, nil
}

// --- notifications ---

type memNotifications struct{ d *memData }

func (r memNotifications) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	n.ID = r.d.id()
	n.IsRead = false
	n.CreatedAt = time.Now().UTC()
	r.d.notifications[n.ID] = *n
	return n, nil
}

func (r memNotifications) FindByUser(ctx context.Context, userID int, unreadOnly bool) ([]domain.Notification, error) {
	out := []domain.Notification{}
	for _, id := range sortedKeys(r.d.notifications) {
		n := r.d.notifications[id]
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r memNotifications) MarkRead(ctx context.Context, id, userID int) (*domain.Notification, error) {
	n, ok := r.d.notifications[id]
	if !ok || n.UserID != userID {
		return nil, repository.ErrNotFound
	}
	n.IsRead = true
	r.d.notifications[id] = n
	return &n, nil
}

func (r memNotifications) MarkAllRead(ctx context.Context, userID int) (int, error) {
	count := 0
	for id, n := range r.d.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			r.d.notifications[id] = n
			count++
		}
	}
	return count, nil
}

func (r memNotifications) CountUnread(ctx context.Context, userID int) (int, error) {
	n, _ := r.FindByUser(ctx, userID, true)
	return len(n), nil
}

func (r memNotifications) DeleteByUser(ctx context.Context, userID int) error {
	for id, n := range r.d.notifications {
		if n.UserID == userID {
			delete(r.d.notifications, id)
		}
	}
	return nil
}

// --- delivery fakes ---

type sentEvent struct {
	userID int
	event  any
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (f *fakeNotifier) Send(ctx context.Context, userID int, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEvent{userID: userID, event: event})
	return nil
}

func (f *fakeNotifier) events() []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEvent(nil), f.sent...)
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []domain.SlotStatusMessage
}

func (f *fakePublisher) PublishSlotStatus(ctx context.Context, msg domain.SlotStatusMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}
