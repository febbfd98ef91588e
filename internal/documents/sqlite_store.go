package documents

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	queryContentHash = "content_hash = ?"
	queryID          = "id = ?"
)

// SQLiteStore implements Store on a GORM sqlite handle.
type SQLiteStore struct {
	db *gorm.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore wraps a migrated database handle.
func NewSQLiteStore(db *gorm.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("documents: database handle is required")
	}
	return &SQLiteStore{db: db}, nil
}

// Save inserts the document. The unique index on content_hash turns a
// conflicting insert into a no-op, which is reported as ErrDuplicateHash.
func (s *SQLiteStore) Save(ctx context.Context, document Document) error {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&document)
	if result.Error != nil {
		return storageFailure(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDuplicateHash
	}
	return nil
}

// FindByHash looks a document up through the content hash index.
func (s *SQLiteStore) FindByHash(ctx context.Context, contentHash string) (Document, error) {
	return s.take(ctx, queryContentHash, contentHash)
}

// FindByID looks a document up by primary key.
func (s *SQLiteStore) FindByID(ctx context.Context, id string) (Document, error) {
	return s.take(ctx, queryID, id)
}

// Count reports the number of stored documents.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Document{}).Count(&count).Error; err != nil {
		return 0, storageFailure(err)
	}
	return count, nil
}

func (s *SQLiteStore) take(ctx context.Context, query string, value string) (Document, error) {
	var document Document
	err := s.db.WithContext(ctx).Where(query, value).Take(&document).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, storageFailure(err)
	}
	return document, nil
}
