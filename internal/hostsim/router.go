package hostsim

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/notary-dapp/internal/rollup"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

var errMissingSimulator = errors.New("simulator dependency required")

// Dependencies wires the HTTP handler.
type Dependencies struct {
	Simulator *Simulator
	Logger    *zap.Logger
}

// NewHTTPHandler exposes the rollup host API plus endpoints to queue inputs and
// read back emitted outputs.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Simulator == nil {
		return nil, errMissingSimulator
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		simulator: deps.Simulator,
		logger:    logger,
	}

	router.POST("/finish", handler.handleFinish)
	router.POST("/notice", handler.handleNotice)
	router.POST("/report", handler.handleReport)
	router.POST("/inputs/advance", handler.handleEnqueue(rollup.RequestKindAdvance))
	router.POST("/inputs/inspect", handler.handleEnqueue(rollup.RequestKindInspect))
	router.GET("/outputs", handler.handleOutputs)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	})
}

type httpHandler struct {
	simulator *Simulator
	logger    *zap.Logger
}

type finishRequestPayload struct {
	Status rollup.Status `json:"status"`
}

type requestDataPayload struct {
	Payload  string           `json:"payload"`
	Metadata *rollup.Metadata `json:"metadata,omitempty"`
}

type finishResponsePayload struct {
	RequestType rollup.RequestKind `json:"request_type"`
	Data        requestDataPayload `json:"data"`
}

type outputRequestPayload struct {
	Payload string `json:"payload"`
}

// enqueueRequestPayload accepts either a hex payload or a JSON document that is
// hex-encoded on the caller's behalf.
type enqueueRequestPayload struct {
	Payload  string           `json:"payload"`
	JSON     json.RawMessage  `json:"json"`
	Metadata *rollup.Metadata `json:"metadata"`
}

type outputsResponsePayload struct {
	Statuses []rollup.Status `json:"statuses"`
	Verdicts []rollup.Status `json:"verdicts"`
	Notices  []string        `json:"notices"`
	Reports  []string        `json:"reports"`
	Pending  int             `json:"pending"`
}

func (h *httpHandler) handleFinish(c *gin.Context) {
	var request finishRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if request.Status != rollup.StatusAccept && request.Status != rollup.StatusReject {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})
		return
	}

	next := h.simulator.finish(c.Request.Context(), request.Status)
	if next == nil {
		c.Status(http.StatusAccepted)
		return
	}

	h.logger.Debug("handing out request", zap.String("request_type", string(next.Kind)))
	c.JSON(http.StatusOK, finishResponsePayload{
		RequestType: next.Kind,
		Data: requestDataPayload{
			Payload:  next.Payload,
			Metadata: next.Metadata,
		},
	})
}

func (h *httpHandler) handleNotice(c *gin.Context) {
	payload, ok := h.bindOutput(c)
	if !ok {
		return
	}
	index := h.simulator.recordNotice(payload)
	c.JSON(http.StatusOK, gin.H{"index": index})
}

func (h *httpHandler) handleReport(c *gin.Context) {
	payload, ok := h.bindOutput(c)
	if !ok {
		return
	}
	h.simulator.recordReport(payload)
	c.Status(http.StatusOK)
}

func (h *httpHandler) bindOutput(c *gin.Context) ([]byte, bool) {
	var request outputRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return nil, false
	}
	payload, err := rollup.DecodeHex(request.Payload)
	if err != nil {
		h.logger.Warn("output payload is not hex", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return nil, false
	}
	return payload, true
}

func (h *httpHandler) handleEnqueue(kind rollup.RequestKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request enqueueRequestPayload
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}

		payload := request.Payload
		if len(request.JSON) > 0 {
			payload = rollup.EncodeHex(request.JSON)
		}
		if payload == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_payload"})
			return
		}

		metadata := request.Metadata
		if kind == rollup.RequestKindInspect {
			metadata = nil
		}
		h.simulator.Enqueue(rollup.Request{Kind: kind, Payload: payload, Metadata: metadata})
		c.JSON(http.StatusAccepted, gin.H{"queued": true})
	}
}

func (h *httpHandler) handleOutputs(c *gin.Context) {
	snapshot := h.simulator.Snapshot()
	response := outputsResponsePayload{
		Statuses: snapshot.Statuses,
		Verdicts: snapshot.Verdicts,
		Notices:  make([]string, 0, len(snapshot.Notices)),
		Reports:  make([]string, 0, len(snapshot.Reports)),
		Pending:  snapshot.Pending,
	}
	for _, notice := range snapshot.Notices {
		response.Notices = append(response.Notices, string(notice))
	}
	for _, report := range snapshot.Reports {
		response.Reports = append(response.Reports, string(report))
	}
	c.JSON(http.StatusOK, response)
}
