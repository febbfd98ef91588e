package rollup

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarcoPoloResearchLab/notary-dapp/internal/metrics"
	"go.uber.org/zap"
)

var (
	errMissingHost    = errors.New("rollup host dependency required")
	errMissingHandler = errors.New("request handler dependency required")
)

// DriverConfig describes the dependencies of the driver loop.
type DriverConfig struct {
	Host    Host
	Handler Handler
	Logger  *zap.Logger
	Metrics *metrics.Recorder
}

// Driver polls the host for requests and feeds them to the handler one at a time.
type Driver struct {
	host    Host
	handler Handler
	logger  *zap.Logger
	metrics *metrics.Recorder
}

// NewDriver validates the configuration.
func NewDriver(cfg DriverConfig) (*Driver, error) {
	if cfg.Host == nil {
		return nil, errMissingHost
	}
	if cfg.Handler == nil {
		return nil, errMissingHandler
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		host:    cfg.Host,
		handler: cfg.Handler,
		logger:  logger,
		metrics: cfg.Metrics,
	}, nil
}

// Run loops until the host fails or ctx is cancelled. The first finish call
// reports accept. Cancellation is a clean exit and returns nil.
func (d *Driver) Run(ctx context.Context) error {
	status := StatusAccept
	d.logger.Info("driver loop started")
	for {
		if ctx.Err() != nil {
			d.logger.Info("driver loop stopped")
			return nil
		}
		next, err := d.Step(ctx, status)
		if err != nil {
			if ctx.Err() != nil {
				d.logger.Info("driver loop stopped")
				return nil
			}
			d.logger.Error("driver loop failed", zap.Error(err))
			return err
		}
		status = next
	}
}

// Step performs one finish round trip. It returns the status to report on the
// next call: unchanged when nothing was pending, reject for unknown request
// kinds, otherwise the handler's verdict.
func (d *Driver) Step(ctx context.Context, status Status) (Status, error) {
	request, err := d.host.Finish(ctx, status)
	if err != nil {
		return status, err
	}
	if request == nil {
		d.logger.Debug("no pending request")
		return status, nil
	}

	switch request.Kind {
	case RequestKindAdvance, RequestKindInspect:
	default:
		d.logger.Warn("unknown request type", zap.String("request_type", string(request.Kind)))
		d.metrics.ObserveRequest(string(request.Kind), string(StatusReject))
		return StatusReject, nil
	}

	d.logger.Debug("handling request", zap.String("request_type", string(request.Kind)))
	response := d.handler.Handle(ctx, *request)
	for _, output := range response.Outputs {
		if err := d.emit(ctx, output); err != nil {
			return status, err
		}
	}

	next := response.Status
	if next != StatusAccept {
		next = StatusReject
	}
	d.metrics.ObserveRequest(string(request.Kind), string(next))
	return next, nil
}

func (d *Driver) emit(ctx context.Context, output Output) error {
	var err error
	switch output.Kind {
	case OutputNotice:
		err = d.host.EmitNotice(ctx, output.Payload)
	case OutputReport:
		err = d.host.EmitReport(ctx, output.Payload)
	default:
		return fmt.Errorf("unknown output kind %q", output.Kind)
	}
	if err != nil {
		return err
	}
	d.metrics.ObserveOutput(string(output.Kind))
	return nil
}
