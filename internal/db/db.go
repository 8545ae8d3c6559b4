package db

import (
	"database/sql"
	"fmt"
	"sync/atomic"

	_ "modernc.org/sqlite"
)

var seq atomic.Int64

// OpenMemory opens a private in-memory SQLite database. Each call gets its
// own database; it is gone once the handle is closed.
func OpenMemory(name string) (*sql.DB, error) {
	if name == "" {
		name = "feedbackfast"
	}
	dsn := fmt.Sprintf("file:%s-%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", name, seq.Add(1))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps the shared-cache database alive and serialises writers.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	return conn, nil
}
