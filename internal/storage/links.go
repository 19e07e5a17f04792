package storage

import (
	"context"
	"database/sql"
	"strings"
)

// Links maps admin-entered anime names to channel post links. Names are
// stored lower-cased and matched as substrings of the fetched title, which
// tolerates minor title differences between providers and admin input.
type Links struct {
	db *sql.DB
}

func (l *Links) Set(ctx context.Context, name, url string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO watch_links(name, url) VALUES(?,?)
		 ON CONFLICT(name) DO UPDATE SET url=excluded.url`,
		name, strings.TrimSpace(url))
	return err
}

// Delete reports whether a link existed for the name.
func (l *Links) Delete(ctx context.Context, name string) (bool, error) {
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM watch_links WHERE name=?`, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Resolve finds a stored link whose name is a substring of the lower-cased
// title. The longest matching name wins so "naruto shippuden" beats "naruto".
func (l *Links) Resolve(ctx context.Context, title string) (string, bool, error) {
	var url string
	err := l.db.QueryRowContext(ctx,
		`SELECT url FROM watch_links WHERE ? LIKE '%' || name || '%'
		 ORDER BY LENGTH(name) DESC, name LIMIT 1`,
		strings.ToLower(title)).Scan(&url)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return url, true, nil
}
