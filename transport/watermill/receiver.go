package watermilltransport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/eventing"
	"github.com/goliatone/go-conduit/internal/jsoncodec"
	"github.com/goliatone/go-conduit/scope"
	"github.com/goliatone/go-conduit/wire"
)

// Receiver hands events from a watermill subscriber to the observers of a
// dispatcher.
type Receiver struct {
	subscriber message.Subscriber
	dispatcher *eventing.Dispatcher
	opts       options
}

func NewReceiver(subscriber message.Subscriber, d *eventing.Dispatcher, opts ...Option) *Receiver {
	return &Receiver{subscriber: subscriber, dispatcher: d, opts: newOptions(opts)}
}

func (r *Receiver) TransportType() conduit.TransportType {
	return conduit.NewTransportType(TransportName, conduit.RoleReceiver)
}

// Listen subscribes to the topic of E and delivers incoming events until ctx
// is done or the subscription is closed. It returns once subscribed; done is
// closed when delivery stops.
//
// Messages with malformed context data or payload are acked and dropped,
// observer failures are nacked.
func Listen[E any](ctx context.Context, r *Receiver) (done <-chan struct{}, err error) {
	eventType := conduit.TypeOf[E]()
	topic := r.opts.topic(eventType)

	messages, err := r.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, conduit.CloneError(conduit.ErrTransportFailed, "failed to subscribe", err, map[string]any{
			"event_type": eventType,
			"topic":      topic,
		})
	}

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for msg := range messages {
			receive[E](ctx, r, eventType, msg)
		}
	}()
	return finished, nil
}

func receive[E any](ctx context.Context, r *Receiver, eventType string, msg *message.Message) {
	logger := conduit.WithLoggerFields(r.opts.logger.WithContext(ctx), map[string]any{
		"event_type": eventType,
		"uuid":       msg.UUID,
	})

	if got := msg.Metadata.Get(EventTypeField); got != "" && got != eventType {
		logger.Warn("dropping message of type %s", got)
		msg.Ack()
		return
	}

	runCtx, _, release, err := r.opts.propagator.Ingress(ctx, wire.MapCarrier(msg.Metadata),
		scope.WithIDGenerator(r.opts.generator))
	if err != nil {
		logger.Warn("dropping message with malformed context: %v", err)
		msg.Ack()
		return
	}
	defer release()

	var evt E
	if err := jsoncodec.Unmarshal(msg.Payload, &evt); err != nil {
		logger.Error("dropping message with malformed payload: %v", err)
		msg.Ack()
		return
	}

	if err := eventing.Deliver(runCtx, r.dispatcher, evt, r.TransportType()); err != nil {
		logger.Warn("observers failed: %v", err)
		msg.Nack()
		return
	}
	msg.Ack()
}
