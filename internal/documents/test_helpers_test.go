package documents

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const fixedUnixSeconds = 1700000000

type staticIDGenerator struct {
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

func newTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "documents.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Document{}); err != nil {
		t.Fatalf("failed to migrate documents: %v", err)
	}
	return db
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(newTestDatabase(t))
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	return store
}

func newTestService(t *testing.T, store Store, ids ...string) *Service {
	t.Helper()
	if len(ids) == 0 {
		ids = []string{"doc-1", "doc-2", "doc-3"}
	}
	service, err := NewService(ServiceConfig{
		Store:      store,
		Clock:      func() time.Time { return time.Unix(fixedUnixSeconds, 0) },
		IDProvider: &staticIDGenerator{ids: ids},
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service
}

// stubStore lets tests force specific store failures.
type stubStore struct {
	saveErr   error
	findErr   error
	found     *Document
	saveCalls int
	findCalls int
}

func (s *stubStore) Save(_ context.Context, _ Document) error {
	s.saveCalls++
	return s.saveErr
}

func (s *stubStore) FindByHash(_ context.Context, _ string) (Document, error) {
	s.findCalls++
	if s.found != nil {
		return *s.found, nil
	}
	if s.findErr != nil {
		return Document{}, s.findErr
	}
	return Document{}, ErrNotFound
}

func (s *stubStore) FindByID(_ context.Context, _ string) (Document, error) {
	s.findCalls++
	if s.found != nil {
		return *s.found, nil
	}
	return Document{}, ErrNotFound
}

func (s *stubStore) Count(_ context.Context) (int64, error) {
	return 0, nil
}
