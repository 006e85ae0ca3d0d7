// Package sqlindex keeps the entries in a SQLite table with a secondary
// index on the key, the way a relational engine would serve the same query.
package sqlindex

import (
	"database/sql"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"

	"github.com/btree-query-bench/ratingidx/index"
	"github.com/btree-query-bench/ratingidx/store"
)

var _ index.Index = (*SQLIndex)(nil)
var _ index.Loader = (*SQLIndex)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id    INTEGER PRIMARY KEY,
	key   INTEGER NOT NULL,
	block INTEGER NOT NULL,
	slot  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS entries_key ON entries (key);`

const insertSQL = "INSERT INTO entries (key, block, slot) VALUES (?, ?, ?)"

type SQLIndex struct {
	db *sql.DB
}

// Open opens the database at path; an empty path keeps it in memory.
func Open(path string) (*SQLIndex, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlindex: open %q", path)
	}
	// Every connection to :memory: is its own database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "sqlindex: init schema")
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA synchronous = NORMAL;`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "sqlindex: pragma")
	}
	return &SQLIndex{db: db}, nil
}

func (s *SQLIndex) Name() string { return "sqlite" }
func (s *SQLIndex) Close() error { return s.db.Close() }

func (s *SQLIndex) Insert(key int64, h store.Handle) error {
	if _, err := s.db.Exec(insertSQL, key, h.Block, h.Slot); err != nil {
		return errors.Wrap(err, "sqlindex: insert")
	}
	return nil
}

// Load inserts entries in one transaction.
func (s *SQLIndex) Load(entries []index.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "sqlindex: begin")
	}
	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "sqlindex: prepare")
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.Key, e.Handle.Block, e.Handle.Slot); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "sqlindex: load key %d", e.Key)
		}
	}
	return errors.Wrap(tx.Commit(), "sqlindex: commit")
}

func (s *SQLIndex) Delete(key int64) error {
	if _, err := s.db.Exec("DELETE FROM entries WHERE key = ?", key); err != nil {
		return errors.Wrap(err, "sqlindex: delete")
	}
	return nil
}

// Range reads the whole result before returning: the single connection
// would otherwise stay busy until the iterator is closed.
func (s *SQLIndex) Range(start, end int64) (index.Iterator, error) {
	rows, err := s.db.Query(
		"SELECT key, block, slot FROM entries WHERE key BETWEEN ? AND ? ORDER BY key, id", start, end)
	if err != nil {
		return nil, errors.Wrap(err, "sqlindex: range")
	}
	defer rows.Close()

	var out []index.Entry
	for rows.Next() {
		var e index.Entry
		if err := rows.Scan(&e.Key, &e.Handle.Block, &e.Handle.Slot); err != nil {
			return nil, errors.Wrap(err, "sqlindex: scan")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlindex: range")
	}
	return index.NewSliceIterator(out), nil
}
