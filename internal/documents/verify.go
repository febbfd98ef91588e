package documents

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// VerificationResult reports whether a content hash has been notarized.
type VerificationResult struct {
	Exists   bool
	Document *Document
	Receipt  *NotarizationReceipt
}

// Verify checks the hash format and looks the hash up. Lookup failures of any
// kind are reported as a negative result rather than an error.
func (s *Service) Verify(ctx context.Context, contentHash string) (VerificationResult, error) {
	if !IsValidContentHash(contentHash) {
		return VerificationResult{}, newServiceError(opVerify, reasonInvalidHashFormat, ErrInvalidHashFormat)
	}
	if s.store == nil {
		return VerificationResult{}, newServiceError(opVerify, reasonMissingStore, errMissingStore)
	}

	normalized := strings.ToLower(contentHash)
	document, err := s.store.FindByHash(ctx, normalized)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logError(opVerify, reasonLookupFailed, err, zap.String(fieldContentHash, normalized))
		}
		return VerificationResult{Exists: false}, nil
	}

	receipt := ReceiptFromDocument(document)
	return VerificationResult{
		Exists:   true,
		Document: &document,
		Receipt:  &receipt,
	}, nil
}

// IsValidContentHash reports whether value is exactly 64 hex digits in either case.
func IsValidContentHash(value string) bool {
	if len(value) != ContentHashLength {
		return false
	}
	for i := 0; i < len(value); i++ {
		if !isHexDigit(value[i]) {
			return false
		}
	}
	return true
}

func isHexDigit(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'a' && c <= 'f':
		return true
	case c >= 'A' && c <= 'F':
		return true
	default:
		return false
	}
}
