package storage

import (
	"context"
	"database/sql"
	"time"
)

type Kind string

const (
	KindIndividual Kind = "individual"
	KindGroup      Kind = "group"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

type Recipient struct {
	ChatID int64
	Kind   Kind
	Title  string
	Status Status
}

type Stats struct {
	Active   int
	Inactive int
	Groups   int
}

// Directory owns recipient status. Status goes inactive only when a delivery
// is refused as forbidden, and back to active only through Register.
type Directory struct {
	db *sql.DB
}

// Register upserts a recipient and (re)activates it. Re-registering is the
// only path from inactive back to active.
func (d *Directory) Register(ctx context.Context, chatID int64, kind Kind, title string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO recipients(chat_id, kind, title, status, joined_at) VALUES(?,?,?,?,?)
		 ON CONFLICT(chat_id) DO UPDATE SET status=excluded.status, title=excluded.title`,
		chatID, string(kind), title, string(StatusActive), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// MarkInactive is idempotent; unknown or already-inactive ids are a no-op.
func (d *Directory) MarkInactive(ctx context.Context, chatID int64) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE recipients SET status=? WHERE chat_id=?`, string(StatusInactive), chatID)
	return err
}

// ListActive returns active chat ids in a stable order.
func (d *Directory) ListActive(ctx context.Context) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT chat_id FROM recipients WHERE status=? ORDER BY chat_id`, string(StatusActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (d *Directory) Get(ctx context.Context, chatID int64) (Recipient, bool, error) {
	var r Recipient
	var title sql.NullString
	err := d.db.QueryRowContext(ctx,
		`SELECT chat_id, kind, title, status FROM recipients WHERE chat_id=?`, chatID).
		Scan(&r.ChatID, &r.Kind, &title, &r.Status)
	if err == sql.ErrNoRows {
		return Recipient{}, false, nil
	}
	if err != nil {
		return Recipient{}, false, err
	}
	r.Title = title.String
	return r, true, nil
}

func (d *Directory) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := d.db.QueryRowContext(ctx,
		`SELECT
		   COUNT(CASE WHEN status=? THEN 1 END),
		   COUNT(CASE WHEN status=? THEN 1 END),
		   COUNT(CASE WHEN kind=? THEN 1 END)
		 FROM recipients`,
		string(StatusActive), string(StatusInactive), string(KindGroup)).
		Scan(&st.Active, &st.Inactive, &st.Groups)
	return st, err
}
