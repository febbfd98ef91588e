package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/MarcoPoloResearchLab/notary-dapp/internal/documents"
)

const (
	actionNotarize = "notarize"
	actionVerify   = "verify"

	noticeTypeReceipt = "notarization_receipt"
)

type actionEnvelope struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type notarizeRequestPayload struct {
	Content  string `json:"content"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
}

type verifyRequestPayload struct {
	ContentHash *string `json:"content_hash"`
}

// NoticeResponse is the notice emitted for a successful notarization.
type NoticeResponse struct {
	Type    string                        `json:"type"`
	Receipt documents.NotarizationReceipt `json:"receipt"`
}

// ReportResponse is the report emitted for a verification. Absent values
// serialize as null.
type ReportResponse struct {
	Exists   bool                           `json:"exists"`
	Document *documents.Document            `json:"document"`
	Receipt  *documents.NotarizationReceipt `json:"receipt"`
}

// ErrorResponse is the report emitted for any failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// parsedAction is a decoded advance payload. Exactly one of notarize/verify is set.
type parsedAction struct {
	notarize *notarizeRequestPayload
	verify   *verifyRequestPayload
}

func parseAdvancePayload(text []byte) (parsedAction, error) {
	var envelope actionEnvelope
	if err := decodeObject(text, &envelope); err != nil {
		return parsedAction{}, err
	}
	if isNullOrEmpty(envelope.Data) {
		return parsedAction{}, fmt.Errorf("%w: missing field `data`", ErrPayloadParse)
	}

	switch envelope.Action {
	case actionNotarize:
		var request notarizeRequestPayload
		if err := decodeObject(envelope.Data, &request); err != nil {
			return parsedAction{}, err
		}
		return parsedAction{notarize: &request}, nil
	case actionVerify:
		request, err := parseVerifyPayload(envelope.Data)
		if err != nil {
			return parsedAction{}, err
		}
		return parsedAction{verify: &request}, nil
	case "":
		return parsedAction{}, fmt.Errorf("%w: missing field `action`", ErrPayloadParse)
	default:
		return parsedAction{}, fmt.Errorf("%w: unknown action %q", ErrPayloadParse, envelope.Action)
	}
}

func parseVerifyPayload(text []byte) (verifyRequestPayload, error) {
	var request verifyRequestPayload
	if err := decodeObject(text, &request); err != nil {
		return verifyRequestPayload{}, err
	}
	if request.ContentHash == nil {
		return verifyRequestPayload{}, fmt.Errorf("%w: missing field `content_hash`", ErrPayloadParse)
	}
	return request, nil
}

// decodeObject requires text to hold exactly one JSON object.
func decodeObject(text []byte, target any) error {
	trimmed := bytes.TrimSpace(text)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: expected a JSON object", ErrPayloadParse)
	}
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("%w: %w", ErrPayloadParse, err)
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after JSON object", ErrPayloadParse)
	}
	return nil
}

func isNullOrEmpty(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
