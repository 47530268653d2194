// Package events announces committed booking changes on the message bus.
package events

import (
	"context"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"
)

// JSONPublisher is satisfied by pkg/mq.Publisher.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// BusPublisher routes every booking event by its type, e.g. "booking.accepted".
type BusPublisher struct {
	bus JSONPublisher
}

func NewBusPublisher(bus JSONPublisher) *BusPublisher {
	return &BusPublisher{bus: bus}
}

func (p *BusPublisher) Publish(ctx context.Context, event *entity.BookingEvent) error {
	if p == nil || p.bus == nil {
		return nil
	}
	return p.bus.PublishJSON(ctx, string(event.Type), event)
}
