package statestore

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/anvil/internal/core/domain"
	"go.trai.ch/anvil/internal/core/ports"
	"go.trai.ch/zerr"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

var _ ports.StateStore = (*SQLiteStore)(nil)

var schema = []string{
	"CREATE TABLE IF NOT EXISTS actions (`identity` INTEGER PRIMARY KEY, `content` INTEGER NOT NULL);",
	"CREATE TABLE IF NOT EXISTS files (`path` TEXT PRIMARY KEY, `size` INTEGER NOT NULL, " +
		"`mtime` INTEGER NOT NULL, `hash` INTEGER NOT NULL);",
}

// SQLiteStore implements ports.StateStore in a SQLite database. Hashes are
// stored as their int64 bit pattern.
type SQLiteStore struct {
	mu   sync.Mutex
	conn *sqlite.Conn
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create state directory"), "path", path)
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to open state database"), "path", path)
	}
	for _, stmt := range schema {
		if err := sqlitex.ExecuteTransient(conn, stmt, nil); err != nil {
			_ = conn.Close()
			return nil, zerr.With(zerr.Wrap(err, "failed to create state schema"), "path", path)
		}
	}
	return &SQLiteStore{conn: conn}, nil
}

// LoadActions returns every stored action entry.
func (s *SQLiteStore) LoadActions(ctx context.Context) (map[uint64]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.conn.SetInterrupt(s.conn.SetInterrupt(ctx.Done()))

	actions := make(map[uint64]uint64)
	err := sqlitex.ExecuteTransient(s.conn, "SELECT `identity`, `content` FROM actions;", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			//nolint:gosec // bit pattern round trip
			actions[uint64(stmt.ColumnInt64(0))] = uint64(stmt.ColumnInt64(1))
			return nil
		},
	})
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load actions")
	}
	return actions, nil
}

// SaveActions replaces the stored action entries in one transaction.
func (s *SQLiteStore) SaveActions(ctx context.Context, actions map[uint64]uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.conn.SetInterrupt(s.conn.SetInterrupt(ctx.Done()))

	err := s.replace("actions", "INSERT INTO actions (`identity`, `content`) VALUES ($identity, $content);",
		func(stmt *sqlite.Stmt) error {
			for identity, content := range actions {
				//nolint:gosec // bit pattern round trip
				stmt.SetInt64("$identity", int64(identity))
				//nolint:gosec // bit pattern round trip
				stmt.SetInt64("$content", int64(content))
				if err := step(stmt); err != nil {
					return err
				}
			}
			return nil
		})
	if err != nil {
		return zerr.Wrap(err, "failed to save actions")
	}
	return nil
}

// LoadFiles returns every stored file record.
func (s *SQLiteStore) LoadFiles(ctx context.Context) (map[string]domain.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.conn.SetInterrupt(s.conn.SetInterrupt(ctx.Done()))

	files := make(map[string]domain.FileRecord)
	err := sqlitex.ExecuteTransient(s.conn, "SELECT `path`, `size`, `mtime`, `hash` FROM files;", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			files[stmt.ColumnText(0)] = domain.FileRecord{
				Size:    stmt.ColumnInt64(1),
				ModTime: stmt.ColumnInt64(2),
				//nolint:gosec // bit pattern round trip
				Hash: uint64(stmt.ColumnInt64(3)),
			}
			return nil
		},
	})
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load files")
	}
	return files, nil
}

// SaveFiles replaces the stored file records in one transaction.
func (s *SQLiteStore) SaveFiles(ctx context.Context, files map[string]domain.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.conn.SetInterrupt(s.conn.SetInterrupt(ctx.Done()))

	err := s.replace("files", "INSERT INTO files (`path`, `size`, `mtime`, `hash`) VALUES ($path, $size, $mtime, $hash);",
		func(stmt *sqlite.Stmt) error {
			for path, rec := range files {
				stmt.SetText("$path", path)
				stmt.SetInt64("$size", rec.Size)
				stmt.SetInt64("$mtime", rec.ModTime)
				//nolint:gosec // bit pattern round trip
				stmt.SetInt64("$hash", int64(rec.Hash))
				if err := step(stmt); err != nil {
					return err
				}
			}
			return nil
		})
	if err != nil {
		return zerr.Wrap(err, "failed to save files")
	}
	return nil
}

// replace empties table and refills it through insert inside one immediate
// transaction. Caller holds s.mu.
func (s *SQLiteStore) replace(table, insert string, fill func(stmt *sqlite.Stmt) error) error {
	if err := sqlitex.ExecuteTransient(s.conn, "BEGIN IMMEDIATE;", nil); err != nil {
		return err
	}

	err := func() error {
		if err := sqlitex.ExecuteTransient(s.conn, "DELETE FROM "+table+";", nil); err != nil {
			return err
		}
		stmt, err := s.conn.Prepare(insert)
		if err != nil {
			return err
		}
		return fill(stmt)
	}()
	if err != nil {
		_ = sqlitex.ExecuteTransient(s.conn, "ROLLBACK;", nil)
		return err
	}
	return sqlitex.ExecuteTransient(s.conn, "COMMIT;", nil)
}

func step(stmt *sqlite.Stmt) error {
	defer func() { _ = stmt.Reset() }()
	_, err := stmt.Step()
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.Close(); err != nil {
		return zerr.Wrap(err, "failed to close state database")
	}
	return nil
}
