package documents

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

const fieldContentHash = "content_hash"

// NotarizeInput carries decoded content plus the request metadata.
type NotarizeInput struct {
	Content     []byte
	FileName    string
	MimeType    string
	SubmittedBy string
	BlockNumber uint64
}

// Notarize validates and stores a new document and returns its receipt.
// Either the document is saved and a receipt returned, or nothing is persisted.
func (s *Service) Notarize(ctx context.Context, input NotarizeInput) (NotarizationReceipt, error) {
	if s.store == nil {
		return NotarizationReceipt{}, newServiceError(opNotarize, reasonMissingStore, errMissingStore)
	}
	if len(input.Content) == 0 {
		return NotarizationReceipt{}, newServiceError(opNotarize, reasonEmptyContent, ErrEmptyContent)
	}
	if strings.TrimSpace(input.FileName) == "" {
		return NotarizationReceipt{}, newServiceError(opNotarize, reasonEmptyFilename, ErrEmptyFilename)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opNotarize, reasonIDGenerationFailed, err)
		return NotarizationReceipt{}, newServiceError(opNotarize, reasonIDGenerationFailed, err)
	}
	document := newDocumentAt(input.Content, input.FileName, input.MimeType, input.SubmittedBy, id, s.clock())

	// The store's unique index is the real guard; this lookup only avoids a wasted write.
	if _, err := s.store.FindByHash(ctx, document.ContentHash); err == nil {
		return NotarizationReceipt{}, newServiceError(opNotarize, reasonDuplicateDocument, ErrDuplicateDocument)
	}

	if err := s.store.Save(ctx, document); err != nil {
		if errors.Is(err, ErrDuplicateHash) {
			return NotarizationReceipt{}, newServiceError(opNotarize, reasonDuplicateDocument, ErrDuplicateDocument)
		}
		s.logError(opNotarize, reasonSaveFailed, err, zap.String(fieldContentHash, document.ContentHash))
		if !errors.Is(err, ErrStorageFailure) {
			err = storageFailure(err)
		}
		return NotarizationReceipt{}, newServiceError(opNotarize, reasonSaveFailed, err)
	}

	s.loggerOrDefault().Info("document notarized",
		zap.String("document_id", document.ID),
		zap.String(fieldContentHash, document.ContentHash),
		zap.Uint64("block_number", input.BlockNumber))

	return NewNotarizationReceipt(document.ID, document.ContentHash, document.CreatedAtSeconds, input.BlockNumber), nil
}
