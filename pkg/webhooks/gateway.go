package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/hookrelay/pkg/accounts"
	"github.com/platinummonkey/hookrelay/pkg/apierrors"
	"github.com/platinummonkey/hookrelay/pkg/async"
	"github.com/platinummonkey/hookrelay/pkg/cache"
	"github.com/platinummonkey/hookrelay/pkg/observability"
)

const invalidTokenMessage = "Invalid or missing " + HeaderToken + " header."

// AccountLookup resolves an account from its secret token
type AccountLookup interface {
	GetAccountBySecret(ctx context.Context, secret string) (*accounts.Account, error)
}

// Enqueuer accepts jobs for out-of-band fan-out without blocking
type Enqueuer interface {
	Enqueue(job Job) error
}

// Gateway authenticates inbound events, drops duplicates and hands the rest
// to the dispatcher.
type Gateway struct {
	accounts AccountLookup
	markers  cache.Backend
	dedupTTL time.Duration
	queue    Enqueuer
	metrics  *observability.Metrics
	logger   logrus.FieldLogger
	now      func() time.Time
}

// NewGateway creates a new Gateway
func NewGateway(lookup AccountLookup, markers cache.Backend, dedupTTL time.Duration, queue Enqueuer, metrics *observability.Metrics, logger logrus.FieldLogger) *Gateway {
	return &Gateway{
		accounts: lookup,
		markers:  markers,
		dedupTTL: dedupTTL,
		queue:    queue,
		metrics:  metrics,
		logger:   logger.WithField("component", "gateway"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// DedupKey is the marker key guarding one event id of one account
func DedupKey(accountID int64, eventID string) string {
	return fmt.Sprintf("incoming:%d:%s", accountID, eventID)
}

// Submit accepts one inbound event. It returns once the event is queued;
// delivery happens later on the dispatcher's workers.
func (g *Gateway) Submit(ctx context.Context, headers http.Header, body []byte) (*Receipt, error) {
	token := strings.TrimSpace(headers.Get(HeaderToken))
	if token == "" {
		g.count("unauthenticated")
		return nil, apierrors.Unauthenticated(invalidTokenMessage)
	}
	eventID := strings.TrimSpace(headers.Get(HeaderEventID))
	if eventID == "" {
		g.count("invalid")
		return nil, apierrors.ValidationFields(map[string]string{HeaderEventID: "This header is required."})
	}

	payload, err := extractData(body)
	if err != nil {
		g.count("invalid")
		return nil, err
	}

	account, err := g.accounts.GetAccountBySecret(ctx, token)
	if err != nil {
		if errors.Is(err, apierrors.ErrNotFound) {
			g.count("unauthenticated")
			return nil, apierrors.Unauthenticated(invalidTokenMessage)
		}
		return nil, err
	}

	logger := g.logger.WithFields(logrus.Fields{"account": account.ID, "event_id": eventID})
	key := DedupKey(account.ID, eventID)

	fresh, err := g.markers.SetNX(ctx, key, []byte("1"), g.dedupTTL)
	if err != nil {
		// A marker failure never rejects the event.
		logger.WithError(err).Warn("dedup marker unavailable, accepting event")
		fresh = true
	}
	if !fresh {
		g.count("duplicate")
		return nil, ErrDuplicateEvent
	}

	job := Job{
		AccountID:  account.ID,
		EventID:    eventID,
		Payload:    payload,
		ReceivedAt: g.now(),
	}
	if err := g.queue.Enqueue(job); err != nil {
		if delErr := g.markers.Delete(ctx, key); delErr != nil {
			logger.WithError(delErr).Warn("failed to release dedup marker")
		}
		if errors.Is(err, async.ErrQueueFull) || errors.Is(err, async.ErrPoolClosed) {
			g.count("rejected")
			return nil, apierrors.Wrap(apierrors.KindUnavailable, "Event queue is full, retry later.", err)
		}
		return nil, fmt.Errorf("failed to enqueue event: %w", err)
	}

	g.count("accepted")
	logger.Debug("event accepted")
	return &Receipt{Success: true, Message: "Data Received"}, nil
}

func (g *Gateway) count(outcome string) {
	if g.metrics != nil {
		g.metrics.IngestedEventsTotal.WithLabelValues(outcome).Inc()
	}
}

// extractData returns the raw "data" member of a JSON object body
func extractData(body []byte) (json.RawMessage, error) {
	var envelope map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&envelope); err != nil || envelope == nil {
		return nil, apierrors.Validation("Request body must be a JSON object.")
	}
	data, ok := envelope["data"]
	if !ok || len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, apierrors.ValidationFields(map[string]string{"data": "This field is required."})
	}
	return data, nil
}
