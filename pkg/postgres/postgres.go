package postgres

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/ds124wfegd/interpreter-booking/config"

	_ "github.com/lib/pq"
)

func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to PostgreSQL")
	return db, nil
}

func RunMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			phone VARCHAR(50) NOT NULL DEFAULT '',
			user_type VARCHAR(20) NOT NULL,
			status BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS user_meta (
			user_id INTEGER PRIMARY KEY REFERENCES users(id),
			consumer_type VARCHAR(20) NOT NULL DEFAULT 'paid',
			city VARCHAR(255) NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			instructions TEXT NOT NULL DEFAULT '',
			translator_type VARCHAR(20) NOT NULL DEFAULT '',
			gender VARCHAR(10) NOT NULL DEFAULT '',
			town VARCHAR(255) NOT NULL DEFAULT '',
			not_get_notification BOOLEAN NOT NULL DEFAULT FALSE,
			not_get_emergency BOOLEAN NOT NULL DEFAULT FALSE,
			not_get_nighttime BOOLEAN NOT NULL DEFAULT FALSE
		)`,

		`CREATE TABLE IF NOT EXISTS languages (
			id SERIAL PRIMARY KEY,
			language VARCHAR(100) NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS translator_levels (
			user_id INTEGER REFERENCES users(id),
			level VARCHAR(100) NOT NULL,
			PRIMARY KEY (user_id, level)
		)`,

		`CREATE TABLE IF NOT EXISTS user_languages (
			user_id INTEGER REFERENCES users(id),
			lang_id INTEGER REFERENCES languages(id),
			PRIMARY KEY (user_id, lang_id)
		)`,

		`CREATE TABLE IF NOT EXISTS users_blacklist (
			user_id INTEGER REFERENCES users(id),
			translator_id INTEGER REFERENCES users(id),
			PRIMARY KEY (user_id, translator_id)
		)`,

		`CREATE TABLE IF NOT EXISTS town_overrides (
			user_id INTEGER REFERENCES users(id),
			translator_id INTEGER REFERENCES users(id),
			PRIMARY KEY (user_id, translator_id)
		)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id SERIAL PRIMARY KEY,
			user_id INTEGER REFERENCES users(id),
			from_language_id INTEGER REFERENCES languages(id),
			immediate BOOLEAN NOT NULL DEFAULT FALSE,
			customer_phone_type BOOLEAN NOT NULL DEFAULT FALSE,
			customer_physical_type BOOLEAN NOT NULL DEFAULT FALSE,
			job_type VARCHAR(20) NOT NULL,
			certified VARCHAR(20) NOT NULL DEFAULT '',
			gender VARCHAR(10) NOT NULL DEFAULT '',
			due TIMESTAMPTZ NOT NULL,
			duration INTEGER NOT NULL,
			status VARCHAR(30) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			will_expire_at TIMESTAMPTZ,
			end_at TIMESTAMPTZ,
			withdraw_at TIMESTAMPTZ,
			session_time VARCHAR(20) NOT NULL DEFAULT '',
			admin_comments TEXT NOT NULL DEFAULT '',
			reference VARCHAR(255) NOT NULL DEFAULT '',
			user_email VARCHAR(255) NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			instructions TEXT NOT NULL DEFAULT '',
			town VARCHAR(255) NOT NULL DEFAULT '',
			emailsent INTEGER NOT NULL DEFAULT 0,
			emailsenttovirpal INTEGER NOT NULL DEFAULT 0,
			ignore_expiring BOOLEAN NOT NULL DEFAULT FALSE,
			ignore_expired BOOLEAN NOT NULL DEFAULT FALSE,
			flagged BOOLEAN NOT NULL DEFAULT FALSE,
			manually_handled BOOLEAN NOT NULL DEFAULT FALSE,
			by_admin BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS translator_job_rel (
			id SERIAL PRIMARY KEY,
			job_id INTEGER REFERENCES bookings(id),
			user_id INTEGER REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			cancel_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			completed_by INTEGER
		)`,

		`CREATE TABLE IF NOT EXISTS distances (
			job_id INTEGER PRIMARY KEY REFERENCES bookings(id),
			distance VARCHAR(50) NOT NULL DEFAULT '',
			time VARCHAR(50) NOT NULL DEFAULT ''
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_bookings_user_id ON bookings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_will_expire_at ON bookings(will_expire_at)`,
		`CREATE INDEX IF NOT EXISTS idx_translator_job_rel_user ON translator_job_rel(user_id)`,

		// One active assignment per booking
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_translator_job_rel_active
			ON translator_job_rel(job_id) WHERE cancel_at IS NULL AND completed_at IS NULL`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %v", err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}
