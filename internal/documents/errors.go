package documents

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyContent indicates a notarization request without content bytes.
	ErrEmptyContent = errors.New("content cannot be empty")
	// ErrEmptyFilename indicates a blank file name.
	ErrEmptyFilename = errors.New("filename cannot be empty")
	// ErrInvalidHashFormat indicates a hash that is not 64 hexadecimal characters.
	ErrInvalidHashFormat = errors.New("invalid hash format: must be 64 hexadecimal characters")
	// ErrDuplicateDocument indicates the content was notarized before.
	ErrDuplicateDocument = errors.New("document with this content hash already exists")
	// ErrDuplicateHash is reported by a Store when the content hash is already persisted.
	ErrDuplicateHash = errors.New("duplicate document hash")
	// ErrNotFound is reported by a Store when no document matches.
	ErrNotFound = errors.New("document not found")
	// ErrStorageFailure wraps any underlying storage error.
	ErrStorageFailure = errors.New("database error")

	errMissingStore = errors.New("document store is required")
)

const (
	opServiceNew = "documents.service.new"
	opNotarize   = "documents.notarize"
	opVerify     = "documents.verify"

	reasonMissingStore       = "missing_store"
	reasonEmptyContent       = "empty_content"
	reasonEmptyFilename      = "empty_filename"
	reasonIDGenerationFailed = "id_generation_failed"
	reasonDuplicateDocument  = "duplicate_document"
	reasonSaveFailed         = "save_failed"
	reasonInvalidHashFormat  = "invalid_hash_format"
	reasonLookupFailed       = "lookup_failed"
)

// ServiceError carries a stable code of the form "<operation>.<reason>" next to the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the stable error code.
func (e *ServiceError) Code() string {
	return e.code
}

// Message returns the human-readable cause without the code prefix.
func (e *ServiceError) Message() string {
	if e.err == nil {
		return e.code
	}
	return e.err.Error()
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

func storageFailure(cause error) error {
	return fmt.Errorf("%w: %w", ErrStorageFailure, cause)
}
