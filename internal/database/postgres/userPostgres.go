package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"

	"github.com/lib/pq"
)

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	query := `
		SELECT id, email, name, phone, user_type, status, created_at
		FROM users
		WHERE id = $1
	`
	return r.getUser(ctx, query, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	query := `
		SELECT id, email, name, phone, user_type, status, created_at
		FROM users
		WHERE lower(email) = $1
	`
	return r.getUser(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (r *userRepository) getUser(ctx context.Context, query string, arg interface{}) (*entity.User, error) {
	var user entity.User
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Phone,
		&user.Role,
		&user.Active,
		&user.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, entity.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %v", err)
	}

	return &user, nil
}

func (r *userRepository) GetCustomer(ctx context.Context, userID int64) (*entity.CustomerProfile, error) {
	query := `
		SELECT user_id, consumer_type, city, address, instructions,
			not_get_notification, not_get_emergency, not_get_nighttime
		FROM user_meta
		WHERE user_id = $1
	`

	var c entity.CustomerProfile
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&c.UserID,
		&c.ConsumerType,
		&c.City,
		&c.Address,
		&c.Instructions,
		&c.Push.NoPush,
		&c.Push.NoEmergencyPush,
		&c.Push.NoNightPush,
	)

	if err == sql.ErrNoRows {
		return nil, entity.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer profile: %v", err)
	}

	return &c, nil
}

const interpreterQuery = `
	SELECT u.id, u.email, u.name, u.phone, m.translator_type, m.gender, m.town,
		m.not_get_notification, m.not_get_emergency, m.not_get_nighttime
	FROM users u
	JOIN user_meta m ON m.user_id = u.id
	WHERE u.user_type = 'translator'`

func (r *userRepository) GetInterpreter(ctx context.Context, userID int64) (*entity.InterpreterProfile, error) {
	profiles, err := r.queryInterpreters(ctx, interpreterQuery+` AND u.id = $1`, userID)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, entity.ErrInterpreterNotFound
	}
	return profiles[0], nil
}

// ActiveInterpreters returns every enabled interpreter with levels and languages loaded
func (r *userRepository) ActiveInterpreters(ctx context.Context) ([]*entity.InterpreterProfile, error) {
	return r.queryInterpreters(ctx, interpreterQuery+` AND u.status = TRUE ORDER BY u.id`)
}

func (r *userRepository) queryInterpreters(ctx context.Context, query string, args ...interface{}) ([]*entity.InterpreterProfile, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query interpreters: %v", err)
	}
	defer rows.Close()

	var (
		profiles []*entity.InterpreterProfile
		ids      []int64
		byID     = make(map[int64]*entity.InterpreterProfile)
	)
	for rows.Next() {
		var p entity.InterpreterProfile
		err := rows.Scan(
			&p.UserID,
			&p.Email,
			&p.Name,
			&p.Phone,
			&p.Tier,
			&p.Gender,
			&p.Town,
			&p.NoPush,
			&p.NoEmergencyPush,
			&p.NoNightPush,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interpreter: %v", err)
		}
		profiles = append(profiles, &p)
		ids = append(ids, p.UserID)
		byID[p.UserID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interpreters: %v", err)
	}
	if len(ids) == 0 {
		return profiles, nil
	}

	if err := r.loadLevels(ctx, ids, byID); err != nil {
		return nil, err
	}
	if err := r.loadLanguages(ctx, ids, byID); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *userRepository) loadLevels(ctx context.Context, ids []int64, byID map[int64]*entity.InterpreterProfile) error {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id, level FROM translator_levels WHERE user_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query interpreter levels: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID int64
			level  entity.CertificationLevel
		)
		if err := rows.Scan(&userID, &level); err != nil {
			return fmt.Errorf("failed to scan interpreter level: %v", err)
		}
		if p, ok := byID[userID]; ok {
			p.Levels = append(p.Levels, level)
		}
	}
	return rows.Err()
}

func (r *userRepository) loadLanguages(ctx context.Context, ids []int64, byID map[int64]*entity.InterpreterProfile) error {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id, lang_id FROM user_languages WHERE user_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query interpreter languages: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID, langID int64
		if err := rows.Scan(&userID, &langID); err != nil {
			return fmt.Errorf("failed to scan interpreter language: %v", err)
		}
		if p, ok := byID[userID]; ok {
			p.Languages = append(p.Languages, langID)
		}
	}
	return rows.Err()
}

// Blacklist returns the interpreters a customer refuses to work with
func (r *userRepository) Blacklist(ctx context.Context, customerID int64) ([]int64, error) {
	return r.queryIDs(ctx, `SELECT translator_id FROM users_blacklist WHERE user_id = $1`, customerID)
}

// TownOverrides returns interpreters allowed on site regardless of town
func (r *userRepository) TownOverrides(ctx context.Context, customerID int64) ([]int64, error) {
	return r.queryIDs(ctx, `SELECT translator_id FROM town_overrides WHERE user_id = $1`, customerID)
}

func (r *userRepository) queryIDs(ctx context.Context, query string, arg interface{}) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %v", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %v", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ids: %v", err)
	}

	return ids, nil
}

type languageRepository struct {
	db *sql.DB
}

func NewLanguageRepository(db *sql.DB) LanguageRepository {
	return &languageRepository{db: db}
}

func (r *languageRepository) GetByID(ctx context.Context, id int64) (*entity.Language, error) {
	var l entity.Language
	err := r.db.QueryRowContext(ctx, `SELECT id, language FROM languages WHERE id = $1`, id).Scan(&l.ID, &l.Name)
	if err == sql.ErrNoRows {
		return nil, entity.ErrLanguageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get language: %v", err)
	}
	return &l, nil
}
