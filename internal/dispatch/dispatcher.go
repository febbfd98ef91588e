package dispatch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/notary-dapp/internal/documents"
	"github.com/MarcoPoloResearchLab/notary-dapp/internal/metrics"
	"github.com/MarcoPoloResearchLab/notary-dapp/internal/rollup"
	"go.uber.org/zap"
)

// DefaultSender stands in for a missing msg_sender.
const DefaultSender = "0x0000000000000000000000000000000000000000"

// NotaryService is the domain surface the dispatcher drives.
type NotaryService interface {
	Notarize(ctx context.Context, input documents.NotarizeInput) (documents.NotarizationReceipt, error)
	Verify(ctx context.Context, contentHash string) (documents.VerificationResult, error)
}

// Config describes the dependencies of a Dispatcher.
type Config struct {
	Service NotaryService
	Logger  *zap.Logger
	Metrics *metrics.Recorder
}

// Dispatcher decodes rollup requests, runs them against the notary service and
// renders the outputs. It keeps no state between requests.
type Dispatcher struct {
	service NotaryService
	logger  *zap.Logger
	metrics *metrics.Recorder
}

var _ rollup.Handler = (*Dispatcher)(nil)

// New validates the configuration.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Service == nil {
		return nil, errMissingService
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		service: cfg.Service,
		logger:  logger,
		metrics: cfg.Metrics,
	}, nil
}

// Handle never fails: every error becomes an error report. Advance requests are
// rejected on failure, inspect requests are always accepted.
func (d *Dispatcher) Handle(ctx context.Context, request rollup.Request) rollup.Response {
	switch request.Kind {
	case rollup.RequestKindAdvance:
		return d.handleAdvance(ctx, request)
	case rollup.RequestKindInspect:
		return d.handleInspect(ctx, request)
	default:
		return rollup.Response{Status: rollup.StatusReject}
	}
}

func (d *Dispatcher) handleAdvance(ctx context.Context, request rollup.Request) rollup.Response {
	text, err := decodeInput(request.Payload)
	if err != nil {
		return d.failure(rollup.StatusReject, err)
	}
	action, err := parseAdvancePayload(text)
	if err != nil {
		return d.failure(rollup.StatusReject, err)
	}

	if action.verify != nil {
		return d.verify(ctx, *action.verify.ContentHash, rollup.StatusReject)
	}
	return d.notarize(ctx, *action.notarize, request.Metadata)
}

func (d *Dispatcher) handleInspect(ctx context.Context, request rollup.Request) rollup.Response {
	text, err := decodeInput(request.Payload)
	if err != nil {
		return d.failure(rollup.StatusAccept, err)
	}
	verifyRequest, err := parseVerifyPayload(text)
	if err != nil {
		return d.failure(rollup.StatusAccept, err)
	}
	return d.verify(ctx, *verifyRequest.ContentHash, rollup.StatusAccept)
}

func (d *Dispatcher) notarize(ctx context.Context, request notarizeRequestPayload, metadata *rollup.Metadata) rollup.Response {
	content, err := base64.StdEncoding.DecodeString(request.Content)
	if err != nil {
		return d.failure(rollup.StatusReject, fmt.Errorf("%w: %w", ErrContentDecode, err))
	}

	sender, blockNumber := DefaultSender, uint64(0)
	if metadata != nil {
		if metadata.MsgSender != "" {
			sender = metadata.MsgSender
		}
		blockNumber = metadata.BlockNumber
	}

	receipt, err := d.service.Notarize(ctx, documents.NotarizeInput{
		Content:     content,
		FileName:    request.FileName,
		MimeType:    request.MimeType,
		SubmittedBy: sender,
		BlockNumber: blockNumber,
	})
	if err != nil {
		return d.failure(rollup.StatusReject, err)
	}
	d.metrics.DocumentNotarized()

	payload, err := json.Marshal(NoticeResponse{Type: noticeTypeReceipt, Receipt: receipt})
	if err != nil {
		return d.failure(rollup.StatusReject, err)
	}
	return rollup.Response{
		Status:  rollup.StatusAccept,
		Outputs: []rollup.Output{{Kind: rollup.OutputNotice, Payload: payload}},
	}
}

// verify reports the lookup result and accepts; failureStatus applies when the
// hash itself is rejected.
func (d *Dispatcher) verify(ctx context.Context, contentHash string, failureStatus rollup.Status) rollup.Response {
	result, err := d.service.Verify(ctx, contentHash)
	if err != nil {
		d.metrics.ObserveVerification("invalid")
		return d.failure(failureStatus, err)
	}
	if result.Exists {
		d.metrics.ObserveVerification("found")
	} else {
		d.metrics.ObserveVerification("missing")
	}

	payload, err := json.Marshal(ReportResponse{
		Exists:   result.Exists,
		Document: result.Document,
		Receipt:  result.Receipt,
	})
	if err != nil {
		return d.failure(failureStatus, err)
	}
	return rollup.Response{
		Status:  rollup.StatusAccept,
		Outputs: []rollup.Output{{Kind: rollup.OutputReport, Payload: payload}},
	}
}

func (d *Dispatcher) failure(status rollup.Status, err error) rollup.Response {
	message := errorMessage(err)
	d.logger.Warn("request failed", zap.String("status", string(status)), zap.Error(err))

	payload, marshalErr := json.Marshal(ErrorResponse{Error: message})
	if marshalErr != nil {
		payload = []byte(`{"error":"internal error"}`)
	}
	return rollup.Response{
		Status:  status,
		Outputs: []rollup.Output{{Kind: rollup.OutputReport, Payload: payload}},
	}
}

func decodeInput(payload string) ([]byte, error) {
	decoded, err := rollup.DecodeHex(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInputDecode, err)
	}
	if !utf8.Valid(decoded) {
		return nil, fmt.Errorf("%w: payload is not valid UTF-8", ErrInputDecode)
	}
	return decoded, nil
}

// errorMessage strips service error codes so reports carry the readable cause.
func errorMessage(err error) string {
	var serviceErr *documents.ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Message()
	}
	return err.Error()
}
