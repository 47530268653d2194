// Package memory keeps bookings, assignments and profiles in process memory.
// It backs local runs without PostgreSQL and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	repository "github.com/ds124wfegd/interpreter-booking/internal/database/postgres"
	"github.com/ds124wfegd/interpreter-booking/internal/entity"
)

type Store struct {
	mu sync.RWMutex

	bookings     map[int64]*entity.Booking
	assignments  map[int64]*entity.Assignment
	distances    map[int64]*entity.Distance
	users        map[int64]*entity.User
	customers    map[int64]*entity.CustomerProfile
	interpreters map[int64]*entity.InterpreterProfile
	languages    map[int64]*entity.Language
	blacklist    map[int64]map[int64]struct{}
	towns        map[int64]map[int64]struct{}

	nextBooking    int64
	nextAssignment int64
}

func NewStore() *Store {
	return &Store{
		bookings:     make(map[int64]*entity.Booking),
		assignments:  make(map[int64]*entity.Assignment),
		distances:    make(map[int64]*entity.Distance),
		users:        make(map[int64]*entity.User),
		customers:    make(map[int64]*entity.CustomerProfile),
		interpreters: make(map[int64]*entity.InterpreterProfile),
		languages:    make(map[int64]*entity.Language),
		blacklist:    make(map[int64]map[int64]struct{}),
		towns:        make(map[int64]map[int64]struct{}),
	}
}

func (s *Store) Bookings() repository.BookingRepository       { return bookingStore{s} }
func (s *Store) Assignments() repository.AssignmentRepository { return assignmentStore{s} }
func (s *Store) Users() repository.UserRepository             { return userStore{s} }
func (s *Store) Languages() repository.LanguageRepository     { return languageStore{s} }

// Seeding

func (s *Store) AddUser(u *entity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *u
	s.users[u.ID] = &c
}

func (s *Store) AddCustomer(u *entity.User, p *entity.CustomerProfile) {
	u.Role = entity.RoleCustomer
	s.AddUser(u)
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *p
	c.UserID = u.ID
	s.customers[u.ID] = &c
}

func (s *Store) AddInterpreter(p *entity.InterpreterProfile) {
	s.AddUser(&entity.User{ID: p.UserID, Email: p.Email, Name: p.Name, Phone: p.Phone, Role: entity.RoleTranslator, Active: true})
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interpreters[p.UserID] = cloneInterpreter(p)
}

func (s *Store) AddLanguage(l *entity.Language) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *l
	s.languages[l.ID] = &c
}

func (s *Store) AddBlacklist(customerID, interpreterID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addPair(s.blacklist, customerID, interpreterID)
}

func (s *Store) AddTownOverride(customerID, interpreterID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addPair(s.towns, customerID, interpreterID)
}

// PutBooking stores a booking as is, keeping its id when set.
func (s *Store) PutBooking(b *entity.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		s.nextBooking++
		b.ID = s.nextBooking
	} else if b.ID > s.nextBooking {
		s.nextBooking = b.ID
	}
	s.bookings[b.ID] = b.Clone()
}

// PutAssignment stores an assignment as is.
func (s *Store) PutAssignment(a *entity.Assignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putAssignment(a)
}

func (s *Store) putAssignment(a *entity.Assignment) {
	if a.ID == 0 {
		s.nextAssignment++
		a.ID = s.nextAssignment
	} else if a.ID > s.nextAssignment {
		s.nextAssignment = a.ID
	}
	c := *a
	s.assignments[a.ID] = &c
}

// ActiveAssignments counts assignments of a booking that are neither cancelled nor completed.
func (s *Store) ActiveAssignments(bookingID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.assignments {
		if a.BookingID == bookingID && a.Active() {
			n++
		}
	}
	return n
}

type bookingStore struct{ s *Store }

func (r bookingStore) Create(ctx context.Context, booking *entity.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextBooking++
	booking.ID = r.s.nextBooking
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now()
	}
	booking.UpdatedAt = time.Now()
	r.s.bookings[booking.ID] = booking.Clone()
	return nil
}

func (r bookingStore) GetByID(ctx context.Context, id int64) (*entity.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, entity.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (r bookingStore) Update(ctx context.Context, booking *entity.Booking) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.bookings[booking.ID]; !ok {
		return 0, nil
	}
	booking.UpdatedAt = time.Now()
	r.s.bookings[booking.ID] = booking.Clone()
	return 1, nil
}

func (r bookingStore) GetByStatus(ctx context.Context, status entity.BookingStatus) ([]*entity.Booking, error) {
	return r.filter(func(b *entity.Booking) bool { return b.Status == status }), nil
}

func (r bookingStore) GetByCustomer(ctx context.Context, customerID int64) ([]*entity.Booking, error) {
	return r.filter(func(b *entity.Booking) bool { return b.CustomerID == customerID }), nil
}

func (r bookingStore) filter(keep func(*entity.Booking) bool) []*entity.Booking {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Booking
	for _, b := range r.s.bookings {
		if keep(b) {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Due.Equal(out[j].Due) {
			return out[i].ID < out[j].ID
		}
		return out[i].Due.Before(out[j].Due)
	})
	return out
}

func (r bookingStore) Apply(ctx context.Context, m *entity.BookingMutation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if m.Booking != nil {
		if _, ok := r.s.bookings[m.Booking.ID]; !ok {
			return entity.ErrBookingNotFound
		}
	}
	for _, a := range []*entity.Assignment{m.Cancel, m.Complete} {
		if a == nil {
			continue
		}
		if _, ok := r.s.assignments[a.ID]; !ok {
			return entity.ErrAssignmentNotFound
		}
	}
	if m.Create != nil && m.Create.Active() {
		for id, a := range r.s.assignments {
			if a.BookingID != m.Create.BookingID || !a.Active() {
				continue
			}
			if (m.Cancel == nil || m.Cancel.ID != id) && (m.Complete == nil || m.Complete.ID != id) {
				return entity.ErrConcurrentUpdate
			}
		}
	}

	for _, a := range []*entity.Assignment{m.Cancel, m.Complete} {
		if a != nil {
			r.s.putAssignment(a)
		}
	}
	if m.Create != nil {
		r.s.putAssignment(m.Create)
	}
	if m.Booking != nil {
		m.Booking.UpdatedAt = time.Now()
		r.s.bookings[m.Booking.ID] = m.Booking.Clone()
	}
	return nil
}

func (r bookingStore) AssignIfPending(ctx context.Context, bookingID, interpreterID int64, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[bookingID]
	if !ok {
		return false, entity.ErrBookingNotFound
	}
	if b.Status != entity.BookingStatusPending {
		return false, nil
	}
	for _, a := range r.s.assignments {
		if a.BookingID == bookingID && a.Active() {
			return false, nil
		}
	}
	b.Status = entity.BookingStatusAssigned
	b.UpdatedAt = now
	r.s.putAssignment(&entity.Assignment{BookingID: bookingID, InterpreterID: interpreterID, CreatedAt: now})
	return true, nil
}

func (r bookingStore) GetExpired(ctx context.Context, before time.Time) ([]*entity.ExpiredBooking, error) {
	pending := r.filter(func(b *entity.Booking) bool {
		return b.Status == entity.BookingStatusPending && !b.IgnoreExpired &&
			b.WillExpireAt != nil && b.WillExpireAt.Before(before)
	})
	out := make([]*entity.ExpiredBooking, 0, len(pending))
	for _, b := range pending {
		out = append(out, &entity.ExpiredBooking{BookingID: b.ID, CustomerID: b.CustomerID, WillExpireAt: *b.WillExpireAt})
	}
	return out, nil
}

func (r bookingStore) ExpireIfPending(ctx context.Context, bookingID int64, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[bookingID]
	if !ok || b.Status != entity.BookingStatusPending {
		return false, nil
	}
	b.Status = entity.BookingStatusTimedOut
	b.UpdatedAt = now
	return true, nil
}

func (r bookingStore) SaveDistance(ctx context.Context, d *entity.Distance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *d
	r.s.distances[d.BookingID] = &c
	return nil
}

func (r bookingStore) GetDistance(ctx context.Context, bookingID int64) (*entity.Distance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if d, ok := r.s.distances[bookingID]; ok {
		c := *d
		return &c, nil
	}
	return &entity.Distance{BookingID: bookingID}, nil
}

type assignmentStore struct{ s *Store }

func (r assignmentStore) GetByBooking(ctx context.Context, bookingID int64) ([]*entity.Assignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Assignment
	for _, a := range r.s.assignments {
		if a.BookingID == bookingID {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r assignmentStore) ActiveWindows(ctx context.Context, interpreterID int64) ([]entity.AssignmentWindow, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []entity.AssignmentWindow
	for _, a := range r.s.assignments {
		if a.InterpreterID != interpreterID || !a.Active() {
			continue
		}
		b, ok := r.s.bookings[a.BookingID]
		if !ok {
			continue
		}
		out = append(out, entity.AssignmentWindow{AssignmentID: a.ID, BookingID: b.ID, Due: b.Due, Duration: b.Duration})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Due.Before(out[j].Due) })
	return out, nil
}

type userStore struct{ s *Store }

func (r userStore) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, entity.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r userStore) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			c := *u
			return &c, nil
		}
	}
	return nil, entity.ErrUserNotFound
}

func (r userStore) GetCustomer(ctx context.Context, userID int64) (*entity.CustomerProfile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.customers[userID]
	if !ok {
		return nil, entity.ErrCustomerNotFound
	}
	out := *c
	return &out, nil
}

func (r userStore) GetInterpreter(ctx context.Context, userID int64) (*entity.InterpreterProfile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.interpreters[userID]
	if !ok {
		return nil, entity.ErrInterpreterNotFound
	}
	return cloneInterpreter(p), nil
}

func (r userStore) ActiveInterpreters(ctx context.Context) ([]*entity.InterpreterProfile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.InterpreterProfile
	for id, p := range r.s.interpreters {
		if u, ok := r.s.users[id]; ok && u.Active {
			out = append(out, cloneInterpreter(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r userStore) Blacklist(ctx context.Context, customerID int64) ([]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return idsOf(r.s.blacklist[customerID]), nil
}

func (r userStore) TownOverrides(ctx context.Context, customerID int64) ([]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return idsOf(r.s.towns[customerID]), nil
}

type languageStore struct{ s *Store }

func (r languageStore) GetByID(ctx context.Context, id int64) (*entity.Language, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.languages[id]
	if !ok {
		return nil, entity.ErrLanguageNotFound
	}
	c := *l
	return &c, nil
}

func cloneInterpreter(p *entity.InterpreterProfile) *entity.InterpreterProfile {
	c := *p
	c.Levels = append([]entity.CertificationLevel(nil), p.Levels...)
	c.Languages = append([]int64(nil), p.Languages...)
	return &c
}

func addPair(m map[int64]map[int64]struct{}, a, b int64) {
	if m[a] == nil {
		m[a] = make(map[int64]struct{})
	}
	m[a][b] = struct{}{}
}

func idsOf(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
