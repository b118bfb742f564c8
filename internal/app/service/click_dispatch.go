package service

import (
	"context"
	"sync"
	"time"

	"github.com/linkboard/linkboard/internal/app/model"
	infraprom "github.com/linkboard/linkboard/internal/infra/prometheus"
	"go.uber.org/zap"
)

// ClickSink accepts a raw click for durable queueing. The NATS publisher
// implements it in production; tests substitute an in-memory sink.
type ClickSink interface {
	Publish(ctx context.Context, click model.RawClick) error
}

// ClickDispatcher decouples the redirect path from the analytics path: a
// bounded channel absorbs bursts, worker goroutines drain it into the
// sink. Enqueue never blocks; when the buffer is full the click is
// dropped and counted, so overload can never back-pressure a redirect.
type ClickDispatcher struct {
	sink           ClickSink
	logger         *zap.Logger
	events         chan model.RawClick
	workers        int
	publishTimeout time.Duration
	wg             sync.WaitGroup
	ctx            context.Context
	cancel         context.CancelFunc
}

// DispatcherConfig sizes the ingest buffer and worker pool.
type DispatcherConfig struct {
	BufferSize     int
	Workers        int
	PublishTimeout time.Duration
}

// NewClickDispatcher creates a dispatcher; call Start before Enqueue.
func NewClickDispatcher(sink ClickSink, logger *zap.Logger, cfg DispatcherConfig) *ClickDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 1024
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &ClickDispatcher{
		sink:           sink,
		logger:         logger,
		events:         make(chan model.RawClick, buffer),
		workers:        workers,
		publishTimeout: timeout,
	}
}

// Start launches the worker goroutines.
func (d *ClickDispatcher) Start() {
	d.ctx, d.cancel = context.WithCancel(context.Background())
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.logger.Info("click dispatcher started",
		zap.Int("workers", d.workers),
		zap.Int("buffer", cap(d.events)))
}

// Stop drains in-flight workers and returns once they have exited.
func (d *ClickDispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
	d.logger.Info("click dispatcher stopped")
}

// Enqueue hands a click to the pipeline without blocking. A full buffer
// drops the click; the drop is logged and counted so silent loss is
// impossible to miss on a dashboard.
func (d *ClickDispatcher) Enqueue(click model.RawClick) {
	select {
	case d.events <- click:
	default:
		infraprom.ClicksDropped.WithLabelValues(infraprom.DropOverflow).Inc()
		d.logger.Warn("click buffer full, event dropped",
			zap.String("code", click.Code))
	}
}

// Depth reports the current buffer occupancy, exposed for health checks.
func (d *ClickDispatcher) Depth() int {
	return len(d.events)
}

func (d *ClickDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case click := <-d.events:
			d.publish(click)
		}
	}
}

func (d *ClickDispatcher) publish(click model.RawClick) {
	ctx, cancel := context.WithTimeout(d.ctx, d.publishTimeout)
	defer cancel()

	if err := d.sink.Publish(ctx, click); err != nil {
		infraprom.ClicksDropped.WithLabelValues(infraprom.DropPublish).Inc()
		d.logger.Error("failed to publish click event",
			zap.String("code", click.Code),
			zap.Error(err))
	}
}
