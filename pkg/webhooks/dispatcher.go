package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/hookrelay/pkg/async"
	"github.com/platinummonkey/hookrelay/pkg/cache"
	"github.com/platinummonkey/hookrelay/pkg/destinations"
	"github.com/platinummonkey/hookrelay/pkg/observability"
)

const (
	maxResponseDrain = 64 << 10
	recordTimeout    = 5 * time.Second
)

// DestinationSource lists the destinations an account fans out to
type DestinationSource interface {
	ForAccount(ctx context.Context, accountID int64) ([]*destinations.Destination, error)
}

// DispatcherConfig sizes the fan-out workers
type DispatcherConfig struct {
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
	Concurrency int           `yaml:"concurrency"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	TaskTimeout time.Duration `yaml:"task_timeout"`
}

// DefaultDispatcherConfig returns the default dispatcher sizing
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:     8,
		QueueSize:   1024,
		Concurrency: 4,
		HTTPTimeout: 10 * time.Second,
		TaskTimeout: 2 * time.Minute,
	}
}

// Dispatcher delivers accepted events to every destination of their account.
// Each destination gets exactly one attempt and one log row per event.
type Dispatcher struct {
	pool         *async.WorkerPool
	destinations DestinationSource
	logs         *LogStore
	caches       *cache.Group
	client       *http.Client
	concurrency  int
	metrics      *observability.Metrics
	logger       logrus.FieldLogger
	now          func() time.Time
}

// NewDispatcher starts the dispatcher's worker pool. Cancelling ctx aborts in-flight deliveries.
func NewDispatcher(ctx context.Context, cfg DispatcherConfig, dests DestinationSource, logs *LogStore, caches *cache.Group, metrics *observability.Metrics, logger logrus.FieldLogger) *Dispatcher {
	defaults := DefaultDispatcherConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaults.Concurrency
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaults.HTTPTimeout
	}

	logger = logger.WithField("component", "dispatcher")
	return &Dispatcher{
		pool: async.NewWorkerPool(ctx, async.PoolConfig{
			Name:        "dispatch",
			Workers:     cfg.Workers,
			QueueSize:   cfg.QueueSize,
			TaskTimeout: cfg.TaskTimeout,
		}, logger),
		destinations: dests,
		logs:         logs,
		caches:       caches,
		client:       &http.Client{Timeout: cfg.HTTPTimeout},
		concurrency:  cfg.Concurrency,
		metrics:      metrics,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue schedules job without blocking. It returns async.ErrQueueFull
// when every queue slot is taken.
func (d *Dispatcher) Enqueue(job Job) error {
	err := d.pool.TrySubmit(func(ctx context.Context) error {
		defer d.reportDepth()
		return d.Process(ctx, job)
	})
	d.reportDepth()
	return err
}

// Shutdown stops accepting jobs and waits for queued ones to finish
func (d *Dispatcher) Shutdown(timeout time.Duration) error {
	return d.pool.Shutdown(timeout)
}

// Process fans job out to the destinations of its account and records one
// log row per destination. A failing destination does not affect the others.
func (d *Dispatcher) Process(ctx context.Context, job Job) error {
	logger := d.logger.WithFields(logrus.Fields{"account": job.AccountID, "event_id": job.EventID})

	dests, err := d.destinations.ForAccount(ctx, job.AccountID)
	if err != nil {
		return fmt.Errorf("failed to load destinations for account %d: %w", job.AccountID, err)
	}
	if len(dests) == 0 {
		logger.Debug("account has no destinations")
		return nil
	}

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, dest := range dests {
		dest := dest
		g.Go(func() error {
			entry := d.deliver(ctx, dest, job)

			recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
			defer cancel()
			if err := d.logs.Record(recordCtx, entry); err != nil {
				logger.WithError(err).WithField("destination_id", dest.ID).Error("failed to record delivery")
				return err
			}
			return nil
		})
	}
	err = g.Wait()

	if d.caches != nil {
		d.caches.InvalidateLogs(context.WithoutCancel(ctx))
	}
	return err
}

func (d *Dispatcher) deliver(ctx context.Context, dest *destinations.Destination, job Job) *DeliveryLog {
	entry := &DeliveryLog{
		AccountID:         job.AccountID,
		DestinationID:     dest.ID,
		EventID:           job.EventID,
		ReceivedTimestamp: job.ReceivedAt,
		ReceivedData:      job.Payload,
		Status:            DeliveryStatusSuccess,
	}

	start := time.Now()
	code, err := d.send(ctx, dest, job)
	elapsed := time.Since(start)

	processed := d.now()
	entry.ProcessedTimestamp = &processed
	if code != 0 {
		entry.ResponseCode = &code
	}

	logger := d.logger.WithFields(logrus.Fields{
		"account":        job.AccountID,
		"event_id":       job.EventID,
		"destination_id": dest.ID,
		"method":         dest.HTTPMethod,
		"duration_ms":    elapsed.Milliseconds(),
	})
	if err != nil {
		entry.Status = DeliveryStatusFailed
		entry.ErrorMessage = err.Error()
		logger.WithError(err).Warn("delivery failed")
	} else {
		logger.WithField("status_code", code).Debug("delivered")
	}

	if d.metrics != nil {
		d.metrics.DeliveriesTotal.WithLabelValues(dest.HTTPMethod, string(entry.Status)).Inc()
		d.metrics.DeliveryDuration.WithLabelValues(dest.HTTPMethod).Observe(elapsed.Seconds())
	}
	return entry
}

// send performs one request and returns the response status, zero when no
// response arrived.
func (d *Dispatcher) send(ctx context.Context, dest *destinations.Destination, job Job) (int, error) {
	req, err := newDeliveryRequest(ctx, dest, job)
	if err != nil {
		return 0, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseDrain))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("destination returned non-2xx status: %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func newDeliveryRequest(ctx context.Context, dest *destinations.Destination, job Job) (*http.Request, error) {
	var (
		req *http.Request
		err error
	)
	if dest.HTTPMethod == destinations.MethodGet {
		target, perr := url.Parse(dest.URL)
		if perr != nil {
			return nil, fmt.Errorf("invalid destination url: %w", perr)
		}
		query := target.Query()
		for key, values := range queryParams(job.Payload) {
			for _, v := range values {
				query.Add(key, v)
			}
		}
		target.RawQuery = query.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, dest.HTTPMethod, dest.URL, bytes.NewReader(job.Payload))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for name, value := range dest.Headers {
		req.Header.Set(name, value)
	}
	req.Header.Set(HeaderEventID, job.EventID)
	return req, nil
}

// queryParams flattens a JSON payload into query parameters. Object members
// become parameters, array members repeat their key and null members are
// skipped. A payload that is not an object is sent whole as "data".
func queryParams(payload json.RawMessage) url.Values {
	values := url.Values{}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(payload, &object); err != nil || object == nil {
		values.Set("data", string(payload))
		return values
	}

	for key, raw := range object {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err == nil {
			for _, item := range list {
				if text, ok := scalarText(item); ok {
					values.Add(key, text)
				}
			}
			continue
		}
		if text, ok := scalarText(raw); ok {
			values.Add(key, text)
		}
	}
	return values
}

func scalarText(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s, true
	}
	return string(trimmed), true
}

func (d *Dispatcher) reportDepth() {
	if d.metrics != nil {
		d.metrics.DispatchQueueDepth.Set(float64(d.pool.QueueDepth()))
	}
}
