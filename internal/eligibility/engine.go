package eligibility

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Profiles is the read side of user storage used for matching.
type Profiles interface {
	ActiveInterpreters(ctx context.Context) ([]*entity.InterpreterProfile, error)
	GetInterpreter(ctx context.Context, userID int64) (*entity.InterpreterProfile, error)
	GetCustomer(ctx context.Context, userID int64) (*entity.CustomerProfile, error)
	Blacklist(ctx context.Context, customerID int64) ([]int64, error)
	TownOverrides(ctx context.Context, customerID int64) ([]int64, error)
}

type Bookings interface {
	GetByStatus(ctx context.Context, status entity.BookingStatus) ([]*entity.Booking, error)
}

// Engine answers both directions of the booking/interpreter match.
// It only reads, so one Engine may serve any number of goroutines.
type Engine struct {
	profiles Profiles
	bookings Bookings
	logger   logrus.FieldLogger
}

func NewEngine(profiles Profiles, bookings Bookings, logger logrus.FieldLogger) *Engine {
	return &Engine{profiles: profiles, bookings: bookings, logger: logger}
}

// RulesFor loads the customer side rules for a booking.
func (e *Engine) RulesFor(ctx context.Context, b *entity.Booking) (Rules, error) {
	town := b.Town
	if town == "" {
		customer, err := e.profiles.GetCustomer(ctx, b.CustomerID)
		if err != nil && !errors.Is(err, entity.ErrCustomerNotFound) {
			return Rules{}, fmt.Errorf("failed to load customer %d: %w", b.CustomerID, err)
		}
		if customer != nil {
			town = customer.City
		}
	}

	blacklist, err := e.profiles.Blacklist(ctx, b.CustomerID)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to load blacklist for customer %d: %w", b.CustomerID, err)
	}
	overrides, err := e.profiles.TownOverrides(ctx, b.CustomerID)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to load town overrides for customer %d: %w", b.CustomerID, err)
	}
	return NewRules(town, blacklist, overrides), nil
}

// EligibleInterpreters returns every active interpreter that may take the booking, ordered by user id.
func (e *Engine) EligibleInterpreters(ctx context.Context, b *entity.Booking) ([]*entity.InterpreterProfile, error) {
	rules, err := e.RulesFor(ctx, b)
	if err != nil {
		return nil, err
	}
	candidates, err := e.profiles.ActiveInterpreters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load interpreters: %w", err)
	}

	var out []*entity.InterpreterProfile
	for _, p := range candidates {
		if Matches(b, p, rules) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })

	e.logger.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"candidates": len(candidates),
		"eligible":   len(out),
	}).Debug("Computed eligible interpreters")
	return out, nil
}

// EligibleBookings returns the pending bookings the interpreter may see, ordered by due time.
func (e *Engine) EligibleBookings(ctx context.Context, interpreterID int64) ([]*entity.Booking, error) {
	interpreter, err := e.profiles.GetInterpreter(ctx, interpreterID)
	if err != nil {
		return nil, err
	}
	pending, err := e.bookings.GetByStatus(ctx, entity.BookingStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending bookings: %w", err)
	}

	rules, err := e.rulesPerCustomer(ctx, pending)
	if err != nil {
		return nil, err
	}

	var out []*entity.Booking
	for _, b := range pending {
		if Matches(b, interpreter, rules[rulesKey{b.CustomerID, b.Town}]) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Due.Equal(out[j].Due) {
			return out[i].ID < out[j].ID
		}
		return out[i].Due.Before(out[j].Due)
	})
	return out, nil
}

type rulesKey struct {
	customerID int64
	town       string
}

// rulesPerCustomer loads rules once per distinct customer and town, in parallel.
func (e *Engine) rulesPerCustomer(ctx context.Context, bookings []*entity.Booking) (map[rulesKey]Rules, error) {
	var (
		mu  sync.Mutex
		out = make(map[rulesKey]Rules)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	seen := make(map[rulesKey]struct{})
	for _, b := range bookings {
		key := rulesKey{b.CustomerID, b.Town}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		g.Go(func() error {
			r, err := e.RulesFor(gctx, b)
			if err != nil {
				return err
			}
			mu.Lock()
			out[key] = r
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
