package mockapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/cardboard/internal/apperr"
	"github.com/starford/cardboard/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cards (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	title       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore keeps the collection in a SQLite database.
type SQLiteStore struct {
	conn *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("mockapi: open db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mockapi: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mockapi: apply schema: %w", err)
	}
	return &SQLiteStore{conn: conn}, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]models.Card, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, title, description FROM cards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("mockapi: list cards: %w", err)
	}
	defer rows.Close()

	cards := []models.Card{}
	for rows.Next() {
		var (
			id int64
			c  models.Card
		)
		if err := rows.Scan(&id, &c.Title, &c.Description); err != nil {
			return nil, fmt.Errorf("mockapi: scan card: %w", err)
		}
		c.ID = strconv.FormatInt(id, 10)
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Card, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	c := models.Card{ID: id}
	err = s.conn.QueryRowContext(ctx, `SELECT title, description FROM cards WHERE id = ?`, n).Scan(&c.Title, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mockapi: get card: %w", err)
	}
	return &c, nil
}

// Create implements Store.
func (s *SQLiteStore) Create(ctx context.Context, draft models.CardDraft) (*models.Card, error) {
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO cards (title, description, created_at) VALUES (?, ?, ?)`,
		draft.Title, draft.Description, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("mockapi: insert card: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("mockapi: last insert id: %w", err)
	}
	return &models.Card{ID: strconv.FormatInt(id, 10), Title: draft.Title, Description: draft.Description}, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) (*models.Card, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mockapi: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	c := models.Card{ID: id}
	err = tx.QueryRowContext(ctx, `SELECT title, description FROM cards WHERE id = ?`, n).Scan(&c.Title, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mockapi: get card: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, n); err != nil {
		return nil, fmt.Errorf("mockapi: delete card: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("mockapi: commit: %w", err)
	}
	return &c, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
