package rollup

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/notary-dapp/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// scriptedHost replays queued finish results and records everything the driver sends.
type scriptedHost struct {
	replies   []*Request
	finishErr error
	emitErr   error
	statuses  []Status
	notices   [][]byte
	reports   [][]byte
	onDrained func()
}

func (h *scriptedHost) Finish(_ context.Context, status Status) (*Request, error) {
	h.statuses = append(h.statuses, status)
	if len(h.replies) == 0 {
		if h.onDrained != nil {
			h.onDrained()
		}
		if h.finishErr != nil {
			return nil, h.finishErr
		}
		return nil, nil
	}
	reply := h.replies[0]
	h.replies = h.replies[1:]
	return reply, nil
}

func (h *scriptedHost) EmitNotice(_ context.Context, payload []byte) error {
	if h.emitErr != nil {
		return h.emitErr
	}
	h.notices = append(h.notices, payload)
	return nil
}

func (h *scriptedHost) EmitReport(_ context.Context, payload []byte) error {
	if h.emitErr != nil {
		return h.emitErr
	}
	h.reports = append(h.reports, payload)
	return nil
}

type scriptedHandler struct {
	responses []Response
	seen      []Request
}

func (h *scriptedHandler) Handle(_ context.Context, request Request) Response {
	h.seen = append(h.seen, request)
	response := h.responses[0]
	h.responses = h.responses[1:]
	return response
}

func newTestDriver(t *testing.T, host Host, handler Handler) *Driver {
	t.Helper()
	driver, err := NewDriver(DriverConfig{
		Host:    host,
		Handler: handler,
		Metrics: metrics.NewRecorder(prometheus.NewRegistry()),
	})
	if err != nil {
		t.Fatalf("failed to build driver: %v", err)
	}
	return driver
}

func TestStepKeepsStatusWhenNothingPending(t *testing.T) {
	host := &scriptedHost{}
	driver := newTestDriver(t, host, &scriptedHandler{})

	next, err := driver.Step(context.Background(), StatusReject)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != StatusReject {
		t.Fatalf("expected previous status to be kept, got %s", next)
	}
}

func TestStepRejectsUnknownKindWithoutDispatching(t *testing.T) {
	host := &scriptedHost{replies: []*Request{{Kind: "mystery_state", Payload: "0x"}}}
	handler := &scriptedHandler{}
	driver := newTestDriver(t, host, handler)

	next, err := driver.Step(context.Background(), StatusAccept)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != StatusReject {
		t.Fatalf("expected reject, got %s", next)
	}
	if len(handler.seen) != 0 {
		t.Fatalf("expected handler not to be called")
	}
}

func TestStepEmitsOutputsInOrder(t *testing.T) {
	host := &scriptedHost{replies: []*Request{{Kind: RequestKindAdvance, Payload: "0x7b7d"}}}
	handler := &scriptedHandler{responses: []Response{{
		Status: StatusAccept,
		Outputs: []Output{
			{Kind: OutputNotice, Payload: []byte("first")},
			{Kind: OutputReport, Payload: []byte("second")},
		},
	}}}
	driver := newTestDriver(t, host, handler)

	next, err := driver.Step(context.Background(), StatusAccept)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != StatusAccept {
		t.Fatalf("expected accept, got %s", next)
	}
	if len(host.notices) != 1 || string(host.notices[0]) != "first" {
		t.Fatalf("unexpected notices %q", host.notices)
	}
	if len(host.reports) != 1 || string(host.reports[0]) != "second" {
		t.Fatalf("unexpected reports %q", host.reports)
	}
}

func TestStepPropagatesEmitFailure(t *testing.T) {
	emitErr := errors.New("emit failed")
	host := &scriptedHost{
		replies: []*Request{{Kind: RequestKindInspect, Payload: "0x7b7d"}},
		emitErr: emitErr,
	}
	handler := &scriptedHandler{responses: []Response{{
		Status:  StatusAccept,
		Outputs: []Output{{Kind: OutputReport, Payload: []byte("{}")}},
	}}}
	driver := newTestDriver(t, host, handler)

	if _, err := driver.Step(context.Background(), StatusAccept); !errors.Is(err, emitErr) {
		t.Fatalf("expected emit failure, got %v", err)
	}
}

func TestRunReportsVerdictsOnFollowingFinish(t *testing.T) {
	hostErr := errors.New("host gone")
	host := &scriptedHost{
		replies: []*Request{
			{Kind: RequestKindAdvance, Payload: "0x01"},
			nil,
			{Kind: RequestKindInspect, Payload: "0x02"},
			{Kind: "unknown", Payload: "0x03"},
		},
		finishErr: hostErr,
	}
	handler := &scriptedHandler{responses: []Response{
		{Status: StatusReject},
		{Status: StatusAccept},
	}}
	driver := newTestDriver(t, host, handler)

	err := driver.Run(context.Background())
	if !errors.Is(err, hostErr) {
		t.Fatalf("expected host failure to end the loop, got %v", err)
	}

	expected := []Status{StatusAccept, StatusReject, StatusReject, StatusAccept, StatusReject}
	if len(host.statuses) != len(expected) {
		t.Fatalf("expected %d finish calls, got %d (%v)", len(expected), len(host.statuses), host.statuses)
	}
	for i, status := range expected {
		if host.statuses[i] != status {
			t.Fatalf("finish %d: expected %s, got %s (%v)", i, status, host.statuses[i], host.statuses)
		}
	}
}

func TestRunStopsCleanlyOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	host := &scriptedHost{onDrained: cancel}
	driver := newTestDriver(t, host, &scriptedHandler{})

	done := make(chan error, 1)
	go func() {
		done <- driver.Run(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean exit, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not stop after cancellation")
	}
}

func TestNewDriverRequiresDependencies(t *testing.T) {
	if _, err := NewDriver(DriverConfig{Handler: &scriptedHandler{}}); err == nil {
		t.Fatalf("expected error for missing host")
	}
	if _, err := NewDriver(DriverConfig{Host: &scriptedHost{}}); err == nil {
		t.Fatalf("expected error for missing handler")
	}
}

func TestStepSurvivesMalformedEnvelopes(t *testing.T) {
	testCases := []struct {
		name       string
		body       string
		wantStatus Status
		wantSeen   int
	}{
		{
			name:       "unknown-kind-with-string-data",
			body:       `{"request_type":"unknown_kind","data":"not-an-object"}`,
			wantStatus: StatusReject,
		},
		{
			name:       "advance-with-string-block-number",
			body:       `{"request_type":"advance_state","data":{"payload":"0x7b7d","metadata":{"msg_sender":"0xabc","block_number":"100"}}}`,
			wantStatus: StatusAccept,
			wantSeen:   1,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			host := newHostServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/finish" {
					w.WriteHeader(http.StatusOK)
					return
				}
				_, _ = w.Write([]byte(testCase.body))
			})
			handler := &scriptedHandler{responses: []Response{{Status: StatusAccept}}}
			driver := newTestDriver(t, host, handler)

			next, err := driver.Step(context.Background(), StatusAccept)
			if err != nil {
				t.Fatalf("expected the loop to continue, got %v", err)
			}
			if next != testCase.wantStatus {
				t.Fatalf("expected %s, got %s", testCase.wantStatus, next)
			}
			if len(handler.seen) != testCase.wantSeen {
				t.Fatalf("expected %d dispatched requests, got %d", testCase.wantSeen, len(handler.seen))
			}
			if testCase.wantSeen == 1 && handler.seen[0].Metadata.BlockNumber != 0 {
				t.Fatalf("expected mistyped block number to default to 0, got %d", handler.seen[0].Metadata.BlockNumber)
			}
		})
	}
}
