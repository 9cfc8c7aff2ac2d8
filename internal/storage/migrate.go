package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ARPaule28/omnichannel/pkg/utils"
)

// Schema is applied on startup. Statements are idempotent so repeated boots
// against the same database are safe.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		phone_number  TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id               BIGSERIAL PRIMARY KEY,
		sender_id        BIGINT REFERENCES users(id),
		sender_address   TEXT NOT NULL,
		receiver_id      BIGINT REFERENCES users(id),
		receiver_address TEXT NOT NULL DEFAULT '',
		channel          TEXT NOT NULL,
		subject          TEXT NOT NULL DEFAULT '',
		body             TEXT NOT NULL DEFAULT '',
		attachment_key   TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages (sender_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages (receiver_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS calls (
		id               BIGSERIAL PRIMARY KEY,
		caller_id        BIGINT REFERENCES users(id),
		caller_address   TEXT NOT NULL,
		receiver_id      BIGINT REFERENCES users(id),
		receiver_address TEXT NOT NULL,
		start_time       TIMESTAMPTZ NOT NULL,
		end_time         TIMESTAMPTZ,
		status           TEXT NOT NULL,
		direction        TEXT NOT NULL,
		provider_call_id TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_calls_caller ON calls (caller_id, start_time DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_calls_receiver ON calls (receiver_id, start_time DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_calls_provider ON calls (provider_call_id)`,

	`CREATE TABLE IF NOT EXISTS provider_events (
		id         UUID PRIMARY KEY,
		event_id   TEXT NOT NULL,
		kind       TEXT NOT NULL,
		from_addr  TEXT NOT NULL DEFAULT '',
		to_addr    TEXT NOT NULL DEFAULT '',
		payload    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_provider_events_event ON provider_events (kind, event_id)`,
}

// Migrate creates the schema if it does not exist yet. Postgres DDL is
// transactional, so a failed boot leaves no half-applied schema behind.
func Migrate(ctx context.Context, db *sql.DB) error {
	err := utils.WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage: migrate: %w", err)
	}
	return nil
}
