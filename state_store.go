// snapcraftls/state_store.go
// Persisted editor state, backed by bbolt. Currently holds the first-run
// welcome flag; the editor extension this replaces kept the same flag in the
// host's global state.
package snapcraftls

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	stateBucketName = []byte("EditorState")
	welcomeShownKey = []byte("welcomeShown")
)

// StateStore wraps a bbolt database holding small persisted flags. A store
// whose database failed to open still works: reads report zero values and
// writes are dropped with a warning, so persistence failures never disable
// the server.
type StateStore struct {
	db     *bbolt.DB
	logger *slog.Logger
}

// OpenStateStore opens (or creates) the state database under the user config
// directory. It never returns an error; on any failure the returned store is
// a functional no-op.
func OpenStateStore(logger *slog.Logger) *StateStore {
	if logger == nil {
		logger = slog.Default()
	}
	storeLogger := logger.With("component", "StateStore")

	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		storeLogger.Warn("Could not determine user config directory, state persistence disabled.", "error", err)
		return &StateStore{logger: storeLogger}
	}
	dir := filepath.Join(userConfigDir, configDirName, "state", fmt.Sprintf("v%d", stateSchemaVersion))
	return openStateStoreAt(filepath.Join(dir, "state.db"), storeLogger)
}

// openStateStoreAt opens the state database at an explicit path.
func openStateStoreAt(dbPath string, logger *slog.Logger) *StateStore {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		logger.Warn("Could not create state directory, state persistence disabled.", "path", dbPath, "error", err)
		return &StateStore{logger: logger}
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		logger.Warn("Failed to open state database, state persistence disabled.", "path", dbPath, "error", err)
		return &StateStore{logger: logger}
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucketName)
		return err
	})
	if err != nil {
		logger.Warn("Failed to ensure state bucket exists, state persistence disabled.", "error", err)
		db.Close()
		return &StateStore{logger: logger}
	}
	logger.Info("Using bbolt state store", "path", dbPath, "schema_version", stateSchemaVersion)
	return &StateStore{db: db, logger: logger}
}

// Enabled reports whether persisted state is actually backed by a database.
func (s *StateStore) Enabled() bool {
	return s != nil && s.db != nil
}

// WelcomeShown reports whether the first-run welcome message was already shown.
func (s *StateStore) WelcomeShown() bool {
	if !s.Enabled() {
		return false
	}
	shown := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(stateBucketName)
		if b == nil {
			return nil
		}
		shown = len(b.Get(welcomeShownKey)) > 0
		return nil
	})
	if err != nil {
		s.logger.Warn("Failed to read welcome flag", "error", err)
		return false
	}
	return shown
}

// MarkWelcomeShown persists the welcome flag.
func (s *StateStore) MarkWelcomeShown() error {
	if !s.Enabled() {
		return nil
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(stateBucketName)
		if b == nil {
			return errors.New("state bucket missing")
		}
		return b.Put(welcomeShownKey, []byte{1})
	})
	if err != nil {
		s.logger.Warn("Failed to persist welcome flag", "error", err)
		return fmt.Errorf("%w: %w", ErrStateStore, err)
	}
	return nil
}

// Close releases the underlying database.
func (s *StateStore) Close() error {
	if !s.Enabled() {
		return nil
	}
	s.logger.Info("Closing state store.")
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("%w: close failed: %w", ErrStateStore, err)
	}
	return nil
}
