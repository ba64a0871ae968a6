package orders

import (
	"context"
	"time"

	"genericstore/internal/events"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("genericstore/internal/orders")

type options struct {
	publisher events.Publisher
	producer  string
	now       func() time.Time
}

// Option configures a Manager or a Fulfiller.
type Option func(*options)

// WithPublisher emits order events through p after each successful commit.
// producer is stamped on every envelope.
func WithPublisher(p events.Publisher, producer string) Option {
	return func(o *options) {
		o.publisher = p
		o.producer = producer
	}
}

// WithClock overrides the time source used for order creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// publish emits an event for an already committed change. Failures are
// logged: the commit stands regardless.
func (o options) publish(ctx context.Context, logger *zap.Logger, eventType string, orderID uint, payload any) {
	if o.publisher == nil {
		return
	}
	env, err := events.New(eventType, o.producer, orderID, payload)
	if err == nil {
		err = o.publisher.Publish(ctx, env)
	}
	if err != nil {
		logger.Error("publish order event failed",
			zap.String("event_type", eventType),
			zap.Uint("order_id", orderID),
			zap.Error(err))
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
