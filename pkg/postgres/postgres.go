package postgres

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/evently/ticketing/config"

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
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS events (
			id VARCHAR(36) PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			description TEXT,
			venue VARCHAR(255),
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP NOT NULL,
			organizer_id VARCHAR(36) REFERENCES users(id),
			status VARCHAR(20) DEFAULT 'draft',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS ticket_types (
			id VARCHAR(36) PRIMARY KEY,
			event_id VARCHAR(36) REFERENCES events(id),
			label VARCHAR(100) NOT NULL,
			unit_price_minor BIGINT NOT NULL,
			currency VARCHAR(3) NOT NULL,
			max_quantity INTEGER NOT NULL,
			per_buyer_limit INTEGER NOT NULL DEFAULT 1,
			sold_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT sold_within_capacity CHECK (sold_count >= 0 AND sold_count <= max_quantity)
		)`,

		`CREATE TABLE IF NOT EXISTS attendees (
			id VARCHAR(36) PRIMARY KEY,
			event_id VARCHAR(36) REFERENCES events(id),
			ticket_type_id VARCHAR(36) REFERENCES ticket_types(id),
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			status VARCHAR(20) DEFAULT 'booked',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS tickets (
			id VARCHAR(36) PRIMARY KEY,
			event_id VARCHAR(36) REFERENCES events(id),
			buyer_user_id VARCHAR(36) REFERENCES users(id),
			attendee_id VARCHAR(36) UNIQUE REFERENCES attendees(id),
			ticket_type_label VARCHAR(100) NOT NULL,
			qr_code_ref TEXT NOT NULL DEFAULT '',
			status VARCHAR(20) DEFAULT 'active',
			sent_to_email BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS payment_sessions (
			id VARCHAR(255) PRIMARY KEY,
			event_id VARCHAR(36) REFERENCES events(id),
			buyer_user_id VARCHAR(36) REFERENCES users(id),
			amount_minor BIGINT NOT NULL,
			currency VARCHAR(3) NOT NULL,
			intent TEXT NOT NULL,
			status VARCHAR(20) DEFAULT 'pending',
			failure_reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_ticket_types_event_id ON ticket_types(event_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_ticket_types_event_label ON ticket_types(event_id, LOWER(label))`,
		`CREATE INDEX IF NOT EXISTS idx_attendees_event_id ON attendees(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_attendees_ticket_type_id ON attendees(ticket_type_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_event_id ON tickets(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_buyer ON tickets(buyer_user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_unfinished ON tickets(status) WHERE qr_code_ref = '' OR sent_to_email = FALSE`,
		`CREATE INDEX IF NOT EXISTS idx_payment_sessions_status ON payment_sessions(status)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %v", err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}
