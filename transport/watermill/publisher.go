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

// Publisher sends events to a watermill publisher.
type Publisher struct {
	publisher message.Publisher
	opts      options
}

func NewPublisher(publisher message.Publisher, opts ...Option) *Publisher {
	return &Publisher{publisher: publisher, opts: newOptions(opts)}
}

func (p *Publisher) TransportType() conduit.TransportType {
	return conduit.NewTransportType(TransportName, conduit.RoleSender)
}

// Publish encodes evt as JSON and publishes it on the topic of E together
// with the downstream context of the active store.
func Publish[E any](ctx context.Context, p *Publisher, evt E) error {
	ctx, store, release := scope.GetOrCreate(ctx, scope.WithIDGenerator(p.opts.generator))
	defer release()

	eventType := conduit.TypeOf[E]()
	payload, err := jsoncodec.Marshal(evt)
	if err != nil {
		return conduit.CloneError(conduit.ErrTransportFailed, "failed to encode event", err, map[string]any{
			"event_type": eventType,
		})
	}

	msg := message.NewMessage(p.opts.generator(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(EventTypeField, eventType)
	p.opts.propagator.InjectRequest(ctx, store, wire.MapCarrier(msg.Metadata))

	topic := p.opts.topic(eventType)
	if err := p.publisher.Publish(topic, msg); err != nil {
		return conduit.CloneError(conduit.ErrTransportFailed, "failed to publish event", err, map[string]any{
			"event_type": eventType,
			"topic":      topic,
		})
	}

	p.opts.logger.WithContext(ctx).Debug("published %s to %s as %s", eventType, topic, msg.UUID)
	return nil
}

// Forward subscribes an observer that publishes every E dispatched by d to
// the broker.
func Forward[E any](d *eventing.Dispatcher, p *Publisher) eventing.Subscription {
	return eventing.SubscribeFunc[E](d, func(ctx context.Context, evt E) error {
		return Publish(ctx, p, evt)
	})
}
