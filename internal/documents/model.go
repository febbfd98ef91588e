package documents

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// ContentHashLength is the number of hex characters in a content hash.
	ContentHashLength = sha256.Size * 2
	proofScheme       = "sha256"
)

// Document models one notarized artifact. Rows are written once and never updated.
type Document struct {
	ID               string `gorm:"column:id;primaryKey;size:36;not null" json:"id"`
	ContentHash      string `gorm:"column:content_hash;size:64;not null;uniqueIndex:idx_documents_content_hash" json:"content_hash"`
	FileName         string `gorm:"column:file_name;type:text;not null" json:"file_name"`
	MimeType         string `gorm:"column:mime_type;type:text;not null" json:"mime_type"`
	SubmittedBy      string `gorm:"column:submitted_by;type:text;not null" json:"submitted_by"`
	CreatedAtSeconds int64  `gorm:"column:created_at;not null;index:idx_documents_created_at" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Document) TableName() string {
	return "documents"
}

// NewDocument hashes content and stamps a fresh identifier and the current time.
// Empty content is accepted here; callers that care reject it first.
func NewDocument(content []byte, fileName, mimeType, submittedBy string) Document {
	id, err := NewUUIDProvider().NewID()
	if err != nil {
		// NewV7 fails only when the random source does.
		id = uuid.NewString()
	}
	return newDocumentAt(content, fileName, mimeType, submittedBy, id, time.Now())
}

func newDocumentAt(content []byte, fileName, mimeType, submittedBy, id string, createdAt time.Time) Document {
	return Document{
		ID:               id,
		ContentHash:      HashContent(content),
		FileName:         fileName,
		MimeType:         mimeType,
		SubmittedBy:      submittedBy,
		CreatedAtSeconds: createdAt.UTC().Unix(),
	}
}

// HashContent returns the lowercase hex sha256 digest of content.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// NotarizationReceipt is derived from a Document and never persisted.
type NotarizationReceipt struct {
	DocumentID  string `json:"document_id"`
	ContentHash string `json:"content_hash"`
	NotarizedAt int64  `json:"notarized_at"`
	BlockNumber uint64 `json:"block_number"`
	Proof       string `json:"proof"`
}

// NewNotarizationReceipt builds a receipt and its proof string.
func NewNotarizationReceipt(documentID, contentHash string, notarizedAt int64, blockNumber uint64) NotarizationReceipt {
	return NotarizationReceipt{
		DocumentID:  documentID,
		ContentHash: contentHash,
		NotarizedAt: notarizedAt,
		BlockNumber: blockNumber,
		Proof:       buildProof(contentHash, notarizedAt),
	}
}

// ReceiptFromDocument rebuilds a receipt for a stored document.
// The submission block number is not stored, so the result always carries block 0.
func ReceiptFromDocument(document Document) NotarizationReceipt {
	return NewNotarizationReceipt(document.ID, document.ContentHash, document.CreatedAtSeconds, 0)
}

func buildProof(contentHash string, notarizedAt int64) string {
	return fmt.Sprintf("%s:%s@%d", proofScheme, contentHash, notarizedAt)
}
