// Package events defines the order events emitted after a commit.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderFulfilled = "OrderFulfilled"
)

// Envelope wraps every event payload.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID uint   `json:"order_id"`
	UserID  uint   `json:"user_id"`
	Status  string `json:"status"`
}

type LineQty struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type OrderFulfilledPayload struct {
	OrderID uint      `json:"order_id"`
	UserID  uint      `json:"user_id"`
	Lines   []LineQty `json:"lines"`
}

// ProductIDs returns the distinct products touched by the fulfillment.
func (p OrderFulfilledPayload) ProductIDs() []uint {
	seen := make(map[uint]bool, len(p.Lines))
	out := make([]uint, 0, len(p.Lines))
	for _, l := range p.Lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			out = append(out, l.ProductID)
		}
	}
	return out
}

// New builds a version 1 envelope around payload.
func New(eventType, producer string, orderID uint, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: strconv.FormatUint(uint64(orderID), 10),
		Payload:       b,
	}, nil
}

// Unwrap decodes the payload of an envelope.
func Unwrap[T any](env Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, fmt.Errorf("decode %s payload: %w", env.EventType, err)
	}
	return t, nil
}

// Publisher hands committed events to the outbound pipeline.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}
