package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/eventwatch/internal/domain/model"
	"github.com/okian/eventwatch/pkg/logger"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DatabaseFile is the sqlite database name inside the state directory.
const DatabaseFile = "ledger.db"

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logger.Logger

	// recovered is set when a corrupt database was moved aside on open;
	// the next Load reports every dataset as corrupt.
	recovered bool
}

func openSQLite(cfg Config, log logger.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return nil, ErrPathRequired
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	path := filepath.Join(dir, DatabaseFile)

	st, err := openDatabase(path, cfg, log)
	if err == nil {
		return st, nil
	}
	if !isCorrupt(err) {
		return nil, err
	}

	aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	log.Warn(context.Background(), "ledger database corrupt, starting empty",
		logger.String("moved_to", aside), logger.Error(err))
	if err := os.Rename(path, aside); err != nil {
		return nil, fmt.Errorf("move corrupt database: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}

	st, err = openDatabase(path, cfg, log)
	if err != nil {
		return nil, err
	}
	st.recovered = true
	return st, nil
}

func openDatabase(path string, cfg Config, log logger.Logger) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return st, nil
}

// isCorrupt reports whether err is SQLITE_CORRUPT or SQLITE_NOTADB,
// including their extended codes.
func isCorrupt(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
		return true
	}
	return false
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Load(ctx context.Context) (State, error) {
	if s.db == nil {
		return State{}, ErrClosed
	}

	var st State
	if s.recovered {
		s.recovered = false
		st.Corrupt = []model.Dataset{model.DatasetEvents, model.DatasetRaids, model.DatasetEggs}
		return st, nil
	}

	ids, err := s.loadNotified(ctx)
	if err != nil {
		s.log.Warn(ctx, "notified ledger unreadable, starting empty", logger.Error(err))
		st.Corrupt = append(st.Corrupt, model.DatasetEvents)
	}
	st.Notified = ids

	for _, part := range []struct {
		dataset model.Dataset
		out     any
	}{
		{model.DatasetRaids, &st.Raids},
		{model.DatasetEggs, &st.Eggs},
	} {
		var body string
		err := s.db.QueryRowContext(ctx, `SELECT body FROM snapshots WHERE dataset = ?`, part.dataset.String()).Scan(&body)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err == nil {
			err = decodeRoster([]byte(body), part.out)
		}
		if err != nil {
			s.log.Warn(ctx, "snapshot unreadable, starting empty",
				logger.String("dataset", part.dataset.String()), logger.Error(err))
			st.Corrupt = append(st.Corrupt, part.dataset)
		}
	}
	return st, nil
}

func (s *sqliteStore) loadNotified(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM notified ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query notified: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Save upserts the snapshots and appends identifiers not yet stored.
// Identifiers are never removed.
func (s *sqliteStore) Save(ctx context.Context, st State) (err error) {
	if s.db == nil {
		return ErrClosed
	}
	raids, err := encodeRoster(st.Raids)
	if err != nil {
		return err
	}
	eggs, err := encodeRoster(st.Eggs)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UnixMilli()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO notified(id, notified_at) VALUES(?, ?) ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, id := range st.Notified {
		if _, err = stmt.ExecContext(ctx, id, now); err != nil {
			return fmt.Errorf("insert notified: %w", err)
		}
	}

	for dataset, body := range map[model.Dataset][]byte{model.DatasetRaids: raids, model.DatasetEggs: eggs} {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO snapshots(dataset, body, updated_at) VALUES(?, ?, ?)
			 ON CONFLICT(dataset) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
			dataset.String(), string(body), now)
		if err != nil {
			return fmt.Errorf("upsert snapshot %s: %w", dataset, err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
