package rollup

import "context"

// RequestKind names the two request types the host hands out.
type RequestKind string

const (
	RequestKindAdvance RequestKind = "advance_state"
	RequestKindInspect RequestKind = "inspect_state"
)

// Status is the verdict reported back to the host on the next finish call.
type Status string

const (
	StatusAccept Status = "accept"
	StatusReject Status = "reject"
)

// OutputKind selects the host endpoint an output is emitted to.
type OutputKind string

const (
	OutputNotice OutputKind = "notice"
	OutputReport OutputKind = "report"
)

// Metadata accompanies advance requests. Inspect requests carry none.
type Metadata struct {
	MsgSender   string `json:"msg_sender"`
	EpochIndex  uint64 `json:"epoch_index"`
	InputIndex  uint64 `json:"input_index"`
	BlockNumber uint64 `json:"block_number"`
	Timestamp   uint64 `json:"timestamp"`
}

// Request is one unit of work obtained from the host.
type Request struct {
	Kind     RequestKind
	Payload  string
	Metadata *Metadata
}

// Output is a notice or report whose payload is the raw JSON document.
type Output struct {
	Kind    OutputKind
	Payload []byte
}

// Response is the result of handling a request.
type Response struct {
	Status  Status
	Outputs []Output
}

// Handler turns requests into outputs and a verdict.
type Handler interface {
	Handle(ctx context.Context, request Request) Response
}

// Host is the rollup host as seen by the driver. Finish returns a nil request
// when nothing is pending.
type Host interface {
	Finish(ctx context.Context, status Status) (*Request, error)
	EmitNotice(ctx context.Context, payload []byte) error
	EmitReport(ctx context.Context, payload []byte) error
}
