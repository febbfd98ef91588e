package hostsim

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/notary-dapp/internal/database"
	"github.com/MarcoPoloResearchLab/notary-dapp/internal/dispatch"
	"github.com/MarcoPoloResearchLab/notary-dapp/internal/documents"
	"github.com/MarcoPoloResearchLab/notary-dapp/internal/rollup"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type endToEndHarness struct {
	simulator *Simulator
	cancel    context.CancelFunc
	done      chan error
}

func startHarness(t *testing.T) *endToEndHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	simulator := NewSimulator(10 * time.Millisecond)
	handler, err := NewHTTPHandler(Dependencies{Simulator: simulator})
	require.NoError(t, err)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	db, err := database.OpenSQLite(database.InMemoryPath, nil)
	require.NoError(t, err)
	store, err := documents.NewSQLiteStore(db)
	require.NoError(t, err)
	cached, err := documents.NewCachedStore(store, 16)
	require.NoError(t, err)
	service, err := documents.NewService(documents.ServiceConfig{Store: cached})
	require.NoError(t, err)
	dispatcher, err := dispatch.New(dispatch.Config{Service: service})
	require.NoError(t, err)
	host, err := rollup.NewHTTPHost(server.URL, server.Client())
	require.NoError(t, err)
	driver, err := rollup.NewDriver(rollup.DriverConfig{Host: host, Handler: dispatcher})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	harness := &endToEndHarness{simulator: simulator, cancel: cancel, done: make(chan error, 1)}
	go func() {
		harness.done <- driver.Run(ctx)
	}()
	t.Cleanup(harness.stop(t))
	return harness
}

func (h *endToEndHarness) stop(t *testing.T) func() {
	return func() {
		h.cancel()
		select {
		case err := <-h.done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("driver did not stop")
		}
	}
}

// submit queues request and waits until the driver has reported its verdict.
func (h *endToEndHarness) submit(t *testing.T, request rollup.Request) rollup.Status {
	t.Helper()
	before := len(h.simulator.Snapshot().Verdicts)
	h.simulator.Enqueue(request)

	var status rollup.Status
	require.Eventually(t, func() bool {
		snapshot := h.simulator.Snapshot()
		if len(snapshot.Verdicts) <= before {
			return false
		}
		status = snapshot.Verdicts[before]
		return true
	}, 5*time.Second, 5*time.Millisecond)
	return status
}

func notarizeAction(content string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(content))
	return rollup.EncodeHex([]byte(`{"action":"notarize","data":{"content":"` + encoded + `","file_name":"test.txt","mime_type":"text/plain"}}`))
}

func lastPayload(t *testing.T, payloads [][]byte) map[string]any {
	t.Helper()
	require.NotEmpty(t, payloads)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payloads[len(payloads)-1], &decoded))
	return decoded
}

func TestNotarizeProducesReceiptNotice(t *testing.T) {
	harness := startHarness(t)

	status := harness.submit(t, rollup.Request{
		Kind:     rollup.RequestKindAdvance,
		Payload:  notarizeAction("Hello, Cartesi Notary!"),
		Metadata: &rollup.Metadata{MsgSender: "0xabc", BlockNumber: 100},
	})

	require.Equal(t, rollup.StatusAccept, status)
	snapshot := harness.simulator.Snapshot()
	require.Len(t, snapshot.Notices, 1)
	notice := lastPayload(t, snapshot.Notices)
	require.Equal(t, "notarization_receipt", notice["type"])
	receipt := notice["receipt"].(map[string]any)
	require.Len(t, receipt["content_hash"], 64)
	require.EqualValues(t, 100, receipt["block_number"])
	require.True(t, strings.HasPrefix(receipt["proof"].(string), "sha256:"))
}

func TestDuplicateNotarizationIsRejected(t *testing.T) {
	harness := startHarness(t)
	payload := notarizeAction("duplicate me")

	first := harness.submit(t, rollup.Request{Kind: rollup.RequestKindAdvance, Payload: payload, Metadata: &rollup.Metadata{MsgSender: "0x1", BlockNumber: 1}})
	second := harness.submit(t, rollup.Request{Kind: rollup.RequestKindAdvance, Payload: payload, Metadata: &rollup.Metadata{MsgSender: "0x2", BlockNumber: 2}})

	require.Equal(t, rollup.StatusAccept, first)
	require.Equal(t, rollup.StatusReject, second)
	report := lastPayload(t, harness.simulator.Snapshot().Reports)
	require.Contains(t, report, "error")
}

func TestInspectUnknownHashReportsNotFound(t *testing.T) {
	harness := startHarness(t)

	status := harness.submit(t, rollup.Request{
		Kind:    rollup.RequestKindInspect,
		Payload: rollup.EncodeHex([]byte(`{"content_hash":"` + strings.Repeat("a", 64) + `"}`)),
	})

	require.Equal(t, rollup.StatusAccept, status)
	reports := harness.simulator.Snapshot().Reports
	require.Len(t, reports, 1)
	require.JSONEq(t, `{"exists":false,"document":null,"receipt":null}`, string(reports[0]))
}

func TestMalformedAdvanceIsRejected(t *testing.T) {
	harness := startHarness(t)

	status := harness.submit(t, rollup.Request{
		Kind:    rollup.RequestKindAdvance,
		Payload: rollup.EncodeHex([]byte("this is not json")),
	})

	require.Equal(t, rollup.StatusReject, status)
	report := lastPayload(t, harness.simulator.Snapshot().Reports)
	require.Contains(t, report, "error")
}

func TestNotarizedDocumentIsVerifiable(t *testing.T) {
	harness := startHarness(t)
	content := "verifiable content"

	require.Equal(t, rollup.StatusAccept, harness.submit(t, rollup.Request{
		Kind:     rollup.RequestKindAdvance,
		Payload:  notarizeAction(content),
		Metadata: &rollup.Metadata{MsgSender: "0xfeed", BlockNumber: 12},
	}))

	hash := documents.HashContent([]byte(content))
	status := harness.submit(t, rollup.Request{
		Kind:    rollup.RequestKindInspect,
		Payload: rollup.EncodeHex([]byte(`{"content_hash":"` + strings.ToUpper(hash) + `"}`)),
	})

	require.Equal(t, rollup.StatusAccept, status)
	report := lastPayload(t, harness.simulator.Snapshot().Reports)
	require.Equal(t, true, report["exists"])
	document := report["document"].(map[string]any)
	require.Equal(t, hash, document["content_hash"])
	require.Equal(t, "0xfeed", document["submitted_by"])
	receipt := report["receipt"].(map[string]any)
	require.EqualValues(t, 0, receipt["block_number"])
}
