package hostsim

import (
	"context"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/notary-dapp/internal/rollup"
)

const defaultPollWait = time.Second

// Snapshot is a copy of everything the simulator has recorded. Statuses holds
// every finish status; Verdicts only those that answer a handed-out request.
type Snapshot struct {
	Statuses []rollup.Status
	Verdicts []rollup.Status
	Notices  [][]byte
	Reports  [][]byte
	Pending  int
}

// Simulator is an in-process rollup host. Requests are queued by Enqueue and
// handed out on finish calls in FIFO order.
type Simulator struct {
	mu         sync.Mutex
	queue      []rollup.Request
	wake       chan struct{}
	pollWait   time.Duration
	statuses   []rollup.Status
	verdicts   []rollup.Status
	awaiting   bool
	notices    [][]byte
	reports    [][]byte
	inputIndex uint64
	clock      func() time.Time
}

// NewSimulator builds an empty simulator. Finish calls with nothing queued wait
// up to pollWait before replying that nothing is pending.
func NewSimulator(pollWait time.Duration) *Simulator {
	if pollWait < 0 {
		pollWait = defaultPollWait
	}
	return &Simulator{
		wake:     make(chan struct{}, 1),
		pollWait: pollWait,
		clock:    time.Now,
	}
}

// Enqueue adds a request to the queue. Advance requests without metadata get
// metadata assigned in arrival order.
func (s *Simulator) Enqueue(request rollup.Request) {
	s.mu.Lock()
	if request.Kind == rollup.RequestKindAdvance {
		request.Metadata = s.fillMetadata(request.Metadata)
	}
	s.queue = append(s.queue, request)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Snapshot returns copies of the recorded statuses and outputs.
func (s *Simulator) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Statuses: append([]rollup.Status(nil), s.statuses...),
		Verdicts: append([]rollup.Status(nil), s.verdicts...),
		Notices:  copyPayloads(s.notices),
		Reports:  copyPayloads(s.reports),
		Pending:  len(s.queue),
	}
}

// finish records status and waits for the next request. It returns nil when
// nothing arrived within the poll window or ctx ended.
func (s *Simulator) finish(ctx context.Context, status rollup.Status) *rollup.Request {
	s.mu.Lock()
	s.statuses = append(s.statuses, status)
	if s.awaiting {
		s.verdicts = append(s.verdicts, status)
		s.awaiting = false
	}
	s.mu.Unlock()

	if request := s.dequeue(); request != nil {
		return request
	}
	if s.pollWait == 0 {
		return nil
	}

	timer := time.NewTimer(s.pollWait)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			return s.dequeue()
		case <-s.wake:
			if request := s.dequeue(); request != nil {
				return request
			}
		}
	}
}

func (s *Simulator) dequeue() *rollup.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	request := s.queue[0]
	s.queue = s.queue[1:]
	s.awaiting = true
	return &request
}

func (s *Simulator) recordNotice(payload []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, payload)
	return len(s.notices) - 1
}

func (s *Simulator) recordReport(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, payload)
}

func (s *Simulator) fillMetadata(metadata *rollup.Metadata) *rollup.Metadata {
	if metadata != nil {
		copied := *metadata
		s.inputIndex++
		return &copied
	}
	filled := &rollup.Metadata{
		MsgSender:   zeroAddress,
		InputIndex:  s.inputIndex,
		BlockNumber: s.inputIndex + 1,
		Timestamp:   uint64(s.clock().Unix()),
	}
	s.inputIndex++
	return filled
}

func copyPayloads(payloads [][]byte) [][]byte {
	copies := make([][]byte, len(payloads))
	for i, payload := range payloads {
		copies[i] = append([]byte(nil), payload...)
	}
	return copies
}
