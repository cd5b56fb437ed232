// Package repository persists the notification ledger state.
package repository

import (
	"context"
	"strings"
	"time"

	"github.com/okian/eventwatch/internal/domain/model"
	"github.com/okian/eventwatch/pkg/logger"
)

// Supported drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// State is everything the watcher must remember across restarts.
type State struct {
	// Notified holds event identities in the order they were recorded.
	Notified []string
	Raids    []model.RaidRecord
	Eggs     []model.EggRecord

	// Corrupt names the parts that were present but could not be decoded.
	// Those parts are returned empty.
	Corrupt []model.Dataset
}

// Store provides durable load/save of the ledger state.
type Store interface {
	// Load returns the persisted state. Absent state yields an empty State.
	Load(ctx context.Context) (State, error)
	// Save replaces the persisted state with s.
	Save(ctx context.Context, s State) error
	Close() error
}

// Config configures storage.
type Config struct {
	Driver string
	// Dir is the state directory for the file driver and the sqlite database.
	Dir         string
	BusyTimeout time.Duration
}

// Open initializes the configured store.
func Open(cfg Config, log logger.Logger) (Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", DriverFile:
		return openFile(cfg, log.Named("file_store"))
	case DriverSQLite, "sqlite3":
		return openSQLite(cfg, log.Named("sqlite_store"))
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, ErrUnknownDriver{Driver: cfg.Driver}
	}
}
