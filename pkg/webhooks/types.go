package webhooks

import (
	"encoding/json"
	"time"

	"github.com/platinummonkey/hookrelay/pkg/apierrors"
	"github.com/platinummonkey/hookrelay/pkg/storage"
)

// Inbound and outbound header names
const (
	HeaderToken   = "CL-X-TOKEN"
	HeaderEventID = "CL-X-EVENT-ID"
)

// DeliveryStatus is the terminal outcome of one delivery attempt
type DeliveryStatus string

const (
	DeliveryStatusSuccess DeliveryStatus = "success"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// ErrDuplicateEvent is returned when an event id was already accepted for
// the account within the dedup window.
var ErrDuplicateEvent = &apierrors.Error{Kind: apierrors.KindValidation, Message: "Duplicate Event ID"}

// Job is one accepted event waiting to be fanned out
type Job struct {
	AccountID  int64
	EventID    string
	Payload    json.RawMessage
	ReceivedAt time.Time
}

// Receipt is the body returned to event submitters
type Receipt struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DeliveryLog records the outcome of delivering one event to one destination
type DeliveryLog struct {
	ID                 int64           `json:"id"`
	AccountID          int64           `json:"account"`
	DestinationID      int64           `json:"destination"`
	EventID            string          `json:"event_id"`
	ReceivedTimestamp  time.Time       `json:"received_timestamp"`
	ProcessedTimestamp *time.Time      `json:"processed_timestamp"`
	ReceivedData       json.RawMessage `json:"received_data"`
	Status             DeliveryStatus  `json:"status"`
	ResponseCode       *int            `json:"response_code,omitempty"`
	ErrorMessage       string          `json:"error_message,omitempty"`
}

// LogListOptions are the filters, search and orderings accepted by delivery log listings
var LogListOptions = storage.ListOptions{
	Fields: map[string]storage.Field{
		"account":             {Column: "account_id", Kind: storage.FilterInt},
		"destination":         {Column: "destination_id", Kind: storage.FilterInt},
		"status":              {Column: "status", Kind: storage.FilterText},
		"received_timestamp":  {Column: "received_timestamp", Kind: storage.FilterTime},
		"processed_timestamp": {Column: "processed_timestamp", Kind: storage.FilterTime},
	},
	SearchColumns: []string{"event_id"},
	Orderings: map[string]string{
		"received_timestamp":  "received_timestamp",
		"processed_timestamp": "processed_timestamp",
	},
	DefaultOrder: "received_timestamp DESC",
}
