package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"keyforge.backend/internal/domain/entities"
	"keyforge.backend/pkg/logger"
	"keyforge.backend/pkg/metrics"
)

const (
	// OwnerHeader carries the id of the application owner when known.
	OwnerHeader = "X-Keyforge-Owner"
	// EventHeader names the event kind of the payload.
	EventHeader = "X-Keyforge-Event"

	eventLicenseCheck = "license.check"
)

var marshalEvent = json.Marshal

// Options sizes the dispatcher
type Options struct {
	Workers    int
	QueueSize  int
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
}

type delivery struct {
	url   string
	event entities.LicenseEvent
	owner uuid.NullUUID
}

// Dispatcher posts license events to application webhooks from a fixed
// worker pool. Notify never blocks: events that do not fit in the queue are
// dropped and counted.
type Dispatcher struct {
	client  *http.Client
	limiter *rate.Limiter
	metrics *metrics.Registry
	workers int

	mu      sync.RWMutex
	queue   chan delivery
	closed  bool
	started bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// NewDispatcher creates a dispatcher. m may be nil.
func NewDispatcher(opts Options, m *metrics.Registry) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	return &Dispatcher{
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, opts.Burst),
		metrics: m,
		workers: opts.Workers,
		queue:   make(chan delivery, opts.QueueSize),
	}
}

// Start launches the workers. They run until Stop or until ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(ctx)
	d.group, ctx = errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		d.group.Go(func() error {
			d.work(ctx)
			return nil
		})
	}
	logger.Info(ctx, "webhook dispatcher started", zap.Int("workers", d.workers))
}

// Notify enqueues an event for delivery.
func (d *Dispatcher) Notify(webhookURL string, event entities.LicenseEvent, ownerID uuid.NullUUID) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop("dispatcher stopped", webhookURL)
		return
	}

	select {
	case d.queue <- delivery{url: webhookURL, event: event, owner: ownerID}:
	default:
		d.drop("queue full", webhookURL)
	}
}

// Stop refuses new events and waits for queued ones to be delivered. When
// ctx ends first, in-flight deliveries are cancelled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- d.group.Wait() }()

	select {
	case err := <-done:
		d.cancel()
		return err
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	for job := range d.queue {
		if ctx.Err() != nil {
			d.record("cancelled")
			continue
		}
		if err := d.limiter.Wait(ctx); err != nil {
			d.record("cancelled")
			continue
		}
		if err := d.deliver(ctx, job); err != nil {
			d.record("failure")
			logger.Warn(ctx, "webhook delivery failed",
				zap.String("url", job.url),
				logger.LicenseKey(job.event.LicenseKey),
				zap.Error(err),
			)
			continue
		}
		d.record("success")
	}
}

func (d *Dispatcher) deliver(ctx context.Context, job delivery) error {
	body, err := marshalEvent(job.event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, eventLicenseCheck)
	if job.owner.Valid {
		req.Header.Set(OwnerHeader, job.owner.UUID.String())
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) drop(reason, url string) {
	if d.metrics != nil {
		d.metrics.WebhookDropped.Inc()
	}
	logger.Warn(context.Background(), "webhook event dropped",
		zap.String("reason", reason),
		zap.String("url", url),
	)
}

func (d *Dispatcher) record(result string) {
	if d.metrics != nil {
		d.metrics.WebhookDeliveries.WithLabelValues(result).Inc()
	}
}
