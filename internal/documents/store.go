package documents

import "context"

// Store persists documents keyed by content hash. Implementations must enforce
// hash uniqueness themselves: a second Save of the same hash fails with
// ErrDuplicateHash even when the calls race.
type Store interface {
	// Save inserts the document or returns ErrDuplicateHash / ErrStorageFailure.
	Save(ctx context.Context, document Document) error
	// FindByHash returns ErrNotFound when no document carries the hash.
	FindByHash(ctx context.Context, contentHash string) (Document, error)
	// FindByID returns ErrNotFound when no document carries the identifier.
	FindByID(ctx context.Context, id string) (Document, error)
	// Count reports the number of stored documents.
	Count(ctx context.Context) (int64, error)
}
