package repository

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/okian/eventwatch/internal/domain/model"
	"github.com/okian/eventwatch/pkg/logger"
)

// File names inside the state directory.
const (
	NotifiedFile = "notified_events.txt"
	RaidsFile    = "raid_data.json"
	EggsFile     = "egg_data.json"
)

// fileStore keeps the ledger as three plain files:
//   - notified_events.txt (one identity per line)
//   - raid_data.json      (last raid roster)
//   - egg_data.json       (last egg roster)
//
// Every file is replaced atomically on Save.
type fileStore struct {
	log logger.Logger
	dir string

	mu     sync.Mutex
	closed bool
}

func openFile(cfg Config, log logger.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return nil, ErrPathRequired
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &fileStore{log: log, dir: dir}, nil
}

func (s *fileStore) Load(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return State{}, ErrClosed
	}

	var st State
	ids, err := readNotified(filepath.Join(s.dir, NotifiedFile))
	if err != nil {
		s.log.Warn(ctx, "notified ledger unreadable, starting empty", logger.Error(err))
		st.Corrupt = append(st.Corrupt, model.DatasetEvents)
	}
	st.Notified = ids

	if ok := s.loadRoster(ctx, RaidsFile, &st.Raids); !ok {
		st.Corrupt = append(st.Corrupt, model.DatasetRaids)
	}
	if ok := s.loadRoster(ctx, EggsFile, &st.Eggs); !ok {
		st.Corrupt = append(st.Corrupt, model.DatasetEggs)
	}
	return st, nil
}

func (s *fileStore) loadRoster(ctx context.Context, name string, out any) bool {
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	if err == nil {
		err = decodeRoster(b, out)
	}
	if err != nil {
		s.log.Warn(ctx, "snapshot unreadable, starting empty",
			logger.String("file", name), logger.Error(err))
		return false
	}
	return true
}

func (s *fileStore) Save(ctx context.Context, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	var buf bytes.Buffer
	for _, id := range st.Notified {
		buf.WriteString(id)
		buf.WriteByte('\n')
	}
	if err := WriteFileAtomic(filepath.Join(s.dir, NotifiedFile), buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", NotifiedFile, err)
	}

	raids, err := encodeRoster(st.Raids)
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(filepath.Join(s.dir, RaidsFile), raids); err != nil {
		return fmt.Errorf("write %s: %w", RaidsFile, err)
	}

	eggs, err := encodeRoster(st.Eggs)
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(filepath.Join(s.dir, EggsFile), eggs); err != nil {
		return fmt.Errorf("write %s: %w", EggsFile, err)
	}
	return nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func readNotified(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ids []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		id := strings.TrimSpace(sc.Text())
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// WriteFileAtomic writes data to a temp file in the target directory,
// syncs it, and renames it over path. Readers see the old or the new
// content, never a partial write.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

func encodeRoster[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

func decodeRoster(b []byte, out any) error {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	return json.Unmarshal(b, out)
}
