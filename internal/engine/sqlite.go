package engine

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteEngine implements Engine on a single SQLite database file.
// It is the default durable backend: one write connection in WAL mode plus a
// read-only connection pool for concurrent readers.
type SQLiteEngine struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool (concurrent readers)
	dbPath string

	getStmt    *sql.Stmt
	putStmt    *sql.Stmt
	deleteStmt *sql.Stmt
}

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
) WITHOUT ROWID;`

// NewSQLiteEngine opens (creating if necessary) the database at dbPath.
func NewSQLiteEngine(dbPath string) (*SQLiteEngine, error) {
	// Write connection: single writer with WAL mode
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("engine: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("engine: failed to initialize schema: %w", err)
	}

	// Read connection pool: concurrent readers via read-only mode
	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&mode=ro")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("engine: failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)

	e := &SQLiteEngine{
		db:     db,
		readDB: readDB,
		dbPath: dbPath,
	}

	if err := e.prepareStatements(); err != nil {
		readDB.Close()
		db.Close()
		return nil, err
	}

	return e, nil
}

func (e *SQLiteEngine) prepareStatements() error {
	var err error

	e.getStmt, err = e.readDB.Prepare("SELECT value FROM kv WHERE key = ?")
	if err != nil {
		return fmt.Errorf("engine: failed to prepare get statement: %w", err)
	}

	e.putStmt, err = e.db.Prepare("INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("engine: failed to prepare put statement: %w", err)
	}

	e.deleteStmt, err = e.db.Prepare("DELETE FROM kv WHERE key = ?")
	if err != nil {
		return fmt.Errorf("engine: failed to prepare delete statement: %w", err)
	}

	return nil
}

// Get returns the value stored under key.
func (e *SQLiteEngine) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := e.getStmt.QueryRowContext(ctx, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("engine: failed to get %s: %w", key, err)
	}
	return value, nil
}

// Put durably stores value under key. The write is acknowledged only after
// SQLite has committed it.
func (e *SQLiteEngine) Put(ctx context.Context, key string, value []byte) error {
	if _, err := e.putStmt.ExecContext(ctx, key, value); err != nil {
		return fmt.Errorf("engine: failed to put %s: %w", key, err)
	}
	return nil
}

// Delete removes the value stored under key. Absent keys are ignored.
func (e *SQLiteEngine) Delete(ctx context.Context, key string) error {
	if _, err := e.deleteStmt.ExecContext(ctx, key); err != nil {
		return fmt.Errorf("engine: failed to delete %s: %w", key, err)
	}
	return nil
}

// Scan returns entries under prefix in ascending key order.
func (e *SQLiteEngine) Scan(ctx context.Context, prefix string) ([]Entry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if prefix == "" {
		rows, err = e.readDB.QueryContext(ctx, "SELECT key, value FROM kv ORDER BY key")
	} else {
		// Exclusive upper bound: the prefix with 0xff appended.
		rows, err = e.readDB.QueryContext(ctx,
			"SELECT key, value FROM kv WHERE key >= ? AND key < ? ORDER BY key",
			prefix, prefix+"\xff")
	}
	if err != nil {
		return nil, fmt.Errorf("engine: failed to scan prefix %s: %w", prefix, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.Key, &entry.Value); err != nil {
			return nil, fmt.Errorf("engine: failed to scan row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("engine: error iterating scan: %w", err)
	}
	return entries, nil
}

// Close closes the prepared statements and both connections.
func (e *SQLiteEngine) Close() error {
	if e.getStmt != nil {
		e.getStmt.Close()
	}
	if e.putStmt != nil {
		e.putStmt.Close()
	}
	if e.deleteStmt != nil {
		e.deleteStmt.Close()
	}

	// Close read connection first, then write connection
	if err := e.readDB.Close(); err != nil {
		e.db.Close()
		return err
	}
	return e.db.Close()
}
