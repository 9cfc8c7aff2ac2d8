package providerevents

import (
	"context"
	"database/sql"
)

// PostgresRepo persists journal records in the provider_events table.
// INSERT-only.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO provider_events (id, event_id, kind, from_addr, to_addr, payload, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.EventID,
		e.Kind,
		e.FromAddr,
		e.ToAddr,
		e.Payload,
		e.CreatedAt,
	)
	return err
}
