package rollup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrHostTransport indicates the rollup host could not be reached or replied
// with something the driver cannot use. The driver treats it as fatal.
var ErrHostTransport = errors.New("rollup host transport failure")

var errMissingBaseURL = errors.New("rollup host url is required")

const (
	pathFinish = "/finish"
	pathNotice = "/notice"
	pathReport = "/report"

	contentTypeJSON = "application/json"
)

type finishRequestPayload struct {
	Status Status `json:"status"`
}

type outputPayload struct {
	Payload string `json:"payload"`
}

// HTTPHost talks to the rollup host over its HTTP API.
type HTTPHost struct {
	baseURL string
	client  *http.Client
}

// NewHTTPHost builds a host client for baseURL. A nil client uses http.DefaultClient.
func NewHTTPHost(baseURL string, client *http.Client) (*HTTPHost, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errMissingBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPHost{baseURL: trimmed, client: client}, nil
}

// Finish reports status and asks for the next request. A 202 reply means
// nothing is pending and yields a nil request.
func (h *HTTPHost) Finish(ctx context.Context, status Status) (*Request, error) {
	response, err := h.post(ctx, pathFinish, finishRequestPayload{Status: status})
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	switch response.StatusCode {
	case http.StatusAccepted:
		_, _ = io.Copy(io.Discard, response.Body)
		return nil, nil
	case http.StatusOK:
	default:
		return nil, unexpectedStatus(pathFinish, response)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read finish response: %w", ErrHostTransport, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: finish response is not JSON", ErrHostTransport)
	}
	request := decodeRequestEnvelope(body)
	return &request, nil
}

// EmitNotice posts a notice carrying payload as hex.
func (h *HTTPHost) EmitNotice(ctx context.Context, payload []byte) error {
	return h.emit(ctx, pathNotice, payload)
}

// EmitReport posts a report carrying payload as hex.
func (h *HTTPHost) EmitReport(ctx context.Context, payload []byte) error {
	return h.emit(ctx, pathReport, payload)
}

func (h *HTTPHost) emit(ctx context.Context, path string, payload []byte) error {
	response, err := h.post(ctx, path, outputPayload{Payload: EncodeHex(payload)})
	if err != nil {
		return err
	}
	defer response.Body.Close()
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return unexpectedStatus(path, response)
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func (h *HTTPHost) post(ctx context.Context, path string, body any) (*http.Response, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s body: %w", ErrHostTransport, path, err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: build %s request: %w", ErrHostTransport, path, err)
	}
	request.Header.Set("Content-Type", contentTypeJSON)

	response, err := h.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: post %s: %w", ErrHostTransport, path, err)
	}
	return response, nil
}

func unexpectedStatus(path string, response *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
	return fmt.Errorf("%w: %s returned %d: %s", ErrHostTransport, path, response.StatusCode, strings.TrimSpace(string(body)))
}
