// Package store provides the SQLite archive of past searches for pulse.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robertmeta/pulse/model"
	_ "modernc.org/sqlite"
)

// Store manages the SQLite archive database.
type Store struct {
	db *sql.DB
}

// ItemRow is one archived item. Payload holds the item's full normalized
// JSON; the other columns are denormalized for querying.
type ItemRow struct {
	ID         int64           `json:"id"`
	SearchID   int64           `json:"search_id"`
	Source     string          `json:"source"`
	ItemID     string          `json:"item_id"`
	URL        string          `json:"url"`
	Date       *string         `json:"date"`
	Confidence string          `json:"date_confidence"`
	Relevance  float64         `json:"relevance"`
	Recency    int             `json:"recency"`
	Payload    json.RawMessage `json:"payload"`
}

// New creates a new Store with the given database path.
// Use ":memory:" for an in-memory database (useful for testing).
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}

	// Initialize schema
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// createSchema creates the database tables and indexes.
func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS searches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		topic TEXT NOT NULL,
		from_date TEXT NOT NULL,
		to_date TEXT NOT NULL,
		sources TEXT NOT NULL,
		label TEXT,
		created INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		search_id INTEGER NOT NULL,
		source TEXT NOT NULL,
		item_id TEXT NOT NULL,
		url TEXT,
		date TEXT,
		date_confidence TEXT,
		relevance REAL,
		recency INTEGER,
		payload TEXT NOT NULL,
		FOREIGN KEY (search_id) REFERENCES searches(id) ON DELETE CASCADE,
		UNIQUE(search_id, source, item_id)
	);

	CREATE INDEX IF NOT EXISTS idx_searches_created ON searches(created DESC);
	CREATE INDEX IF NOT EXISTS idx_items_search_id ON items(search_id);
	CREATE INDEX IF NOT EXISTS idx_items_recency ON items(recency DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveSearch inserts a search run and sets its ID.
func (s *Store) SaveSearch(run *model.Search) error {
	if run.Created.IsZero() {
		run.Created = time.Now()
	}

	result, err := s.db.Exec(
		"INSERT INTO searches (topic, from_date, to_date, sources, label, created) VALUES (?, ?, ?, ?, ?, ?)",
		run.Topic, run.From, run.To, run.Sources, run.Label, run.Created.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert search: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	run.ID = id
	return nil
}

// GetSearch retrieves a search run by ID.
func (s *Store) GetSearch(id int64) (*model.Search, error) {
	run := &model.Search{}
	var createdUnix int64

	err := s.db.QueryRow(
		"SELECT id, topic, from_date, to_date, sources, label, created FROM searches WHERE id = ?",
		id,
	).Scan(&run.ID, &run.Topic, &run.From, &run.To, &run.Sources, &run.Label, &createdUnix)

	if err == sql.ErrNoRows {
		return nil, errors.New("search not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get search: %w", err)
	}

	run.Created = time.Unix(createdUnix, 0)
	return run, nil
}

// Searches retrieves the most recent search runs, newest first.
func (s *Store) Searches(limit int) ([]*model.Search, error) {
	query := "SELECT id, topic, from_date, to_date, sources, label, created FROM searches ORDER BY created DESC"
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query searches: %w", err)
	}
	defer rows.Close()

	var runs []*model.Search
	for rows.Next() {
		run := &model.Search{}
		var createdUnix int64
		if err := rows.Scan(&run.ID, &run.Topic, &run.From, &run.To, &run.Sources, &run.Label, &createdUnix); err != nil {
			return nil, fmt.Errorf("failed to scan search: %w", err)
		}
		run.Created = time.Unix(createdUnix, 0)
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// SaveItem archives one item under a search run. Saving the same item twice
// for one run is an error (unique on search, source, item id).
func (s *Store) SaveItem(row *ItemRow) error {
	result, err := s.db.Exec(
		"INSERT INTO items (search_id, source, item_id, url, date, date_confidence, relevance, recency, payload) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		row.SearchID, row.Source, row.ItemID, row.URL, row.Date, row.Confidence, row.Relevance, row.Recency, string(row.Payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	row.ID = id
	return nil
}

// ItemsForSearch retrieves archived items for a search run with optional
// filtering, ordered by recency score (freshest first).
func (s *Store) ItemsForSearch(searchID int64, opts QueryOptions) ([]*ItemRow, error) {
	query := "SELECT id, search_id, source, item_id, url, date, date_confidence, relevance, recency, payload FROM items WHERE search_id = ?"
	args := []interface{}{searchID}

	// Apply filters
	if opts.Source != "" {
		query += " AND source = ?"
		args = append(args, opts.Source)
	}

	if opts.HighConfidenceOnly {
		query += " AND date_confidence = 'high'"
	}

	if opts.MinRecency > 0 {
		query += " AND recency >= ?"
		args = append(args, opts.MinRecency)
	}

	query += " ORDER BY recency DESC, relevance DESC"

	// Apply pagination
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*ItemRow
	for rows.Next() {
		row := &ItemRow{}
		var payload string
		err := rows.Scan(&row.ID, &row.SearchID, &row.Source, &row.ItemID, &row.URL, &row.Date, &row.Confidence, &row.Relevance, &row.Recency, &payload)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		row.Payload = json.RawMessage(payload)
		items = append(items, row)
	}

	return items, rows.Err()
}

// PruneBefore deletes search runs created before the cutoff along with
// their items, and returns how many runs were removed. Items are deleted
// explicitly rather than relying on the cascade, since SQLite ships with
// foreign key enforcement off.
func (s *Store) PruneBefore(cutoff time.Time) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin prune: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"DELETE FROM items WHERE search_id IN (SELECT id FROM searches WHERE created < ?)",
		cutoff.Unix(),
	); err != nil {
		return 0, fmt.Errorf("failed to prune items: %w", err)
	}

	result, err := tx.Exec("DELETE FROM searches WHERE created < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune searches: %w", err)
	}

	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return pruned, tx.Commit()
}
