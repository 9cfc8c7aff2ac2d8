package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRepo persists call records in the calls table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const callColumns = `id, caller_id, caller_address, receiver_id, receiver_address, start_time, end_time, status, direction, provider_call_id, created_at`

func (r *PostgresRepo) Insert(ctx context.Context, c Call) (Call, error) {
	const q = `
INSERT INTO calls (caller_id, caller_address, receiver_id, receiver_address, start_time, end_time, status, direction, provider_call_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING id
`
	if err := r.db.QueryRowContext(ctx, q,
		c.CallerID,
		c.CallerAddress,
		c.ReceiverID,
		c.ReceiverAddress,
		c.StartTime,
		c.EndTime,
		c.Status,
		c.Direction,
		c.ProviderCallID,
		c.CreatedAt,
	).Scan(&c.ID); err != nil {
		return Call{}, err
	}
	return c, nil
}

func scanCall(scan func(dest ...any) error) (Call, error) {
	var c Call
	err := scan(
		&c.ID,
		&c.CallerID,
		&c.CallerAddress,
		&c.ReceiverID,
		&c.ReceiverAddress,
		&c.StartTime,
		&c.EndTime,
		&c.Status,
		&c.Direction,
		&c.ProviderCallID,
		&c.CreatedAt,
	)
	return c, err
}

func (r *PostgresRepo) ByID(ctx context.Context, id int64) (Call, error) {
	const q = `SELECT ` + callColumns + ` FROM calls WHERE id = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func (r *PostgresRepo) ByProviderCallID(ctx context.Context, providerCallID string) (Call, error) {
	const q = `SELECT ` + callColumns + ` FROM calls WHERE provider_call_id = $1 ORDER BY id DESC LIMIT 1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, providerCallID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func (r *PostgresRepo) Terminate(ctx context.Context, id int64, outcome Status, endTime time.Time) (bool, error) {
	// Guarded on status = ongoing; the row-level atomic update is the only
	// concurrency control the single-writer discipline needs.
	const q = `UPDATE calls SET status = $2, end_time = $3 WHERE id = $1 AND status = 'ongoing'`
	res, err := r.db.ExecContext(ctx, q, id, outcome, endTime)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepo) ListForUser(ctx context.Context, userID int64, direction Direction) ([]Call, error) {
	q := `SELECT ` + callColumns + `
FROM calls
WHERE (caller_id = $1 OR receiver_id = $1)
`
	args := []any{userID}
	if direction != "" {
		q += ` AND direction = $2`
		args = append(args, direction)
	}
	q += ` ORDER BY start_time DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		c, err := scanCall(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
