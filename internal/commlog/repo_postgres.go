package commlog

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo persists messages in the messages table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const messageColumns = `id, sender_id, sender_address, receiver_id, receiver_address, channel, subject, body, attachment_key, status, created_at`

func (r *PostgresRepo) Insert(ctx context.Context, m Message) (Message, error) {
	const q = `
INSERT INTO messages (sender_id, sender_address, receiver_id, receiver_address, channel, subject, body, attachment_key, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING id
`
	if err := r.db.QueryRowContext(ctx, q,
		m.SenderID,
		m.SenderAddress,
		m.ReceiverID,
		m.ReceiverAddress,
		m.Channel,
		m.Subject,
		m.Body,
		m.AttachmentKey,
		m.Status,
		m.CreatedAt,
	).Scan(&m.ID); err != nil {
		return Message{}, err
	}
	return m, nil
}

func (r *PostgresRepo) ByID(ctx context.Context, id int64) (Message, error) {
	const q = `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	var m Message
	if err := r.db.QueryRowContext(ctx, q, id).Scan(
		&m.ID,
		&m.SenderID,
		&m.SenderAddress,
		&m.ReceiverID,
		&m.ReceiverAddress,
		&m.Channel,
		&m.Subject,
		&m.Body,
		&m.AttachmentKey,
		&m.Status,
		&m.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Message{}, ErrNotFound
		}
		return Message{}, err
	}
	return m, nil
}

func (r *PostgresRepo) AdvanceStatus(ctx context.Context, id int64, from, to Status) (bool, error) {
	// Compare-and-set on the status column; row-level atomicity is the only
	// concurrency control the single-writer discipline needs.
	const q = `UPDATE messages SET status = $3 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, q, id, from, to)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepo) ListForUser(ctx context.Context, userID int64, channel Channel) ([]Message, error) {
	q := `SELECT ` + messageColumns + `
FROM messages
WHERE (sender_id = $1 OR receiver_id = $1)
`
	args := []any{userID}
	if channel != "" {
		q += ` AND channel = $2`
		args = append(args, channel)
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID,
			&m.SenderID,
			&m.SenderAddress,
			&m.ReceiverID,
			&m.ReceiverAddress,
			&m.Channel,
			&m.Subject,
			&m.Body,
			&m.AttachmentKey,
			&m.Status,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
