package memory

import (
	"context"

	"stockflow/internal/core/events"
)

// Publisher stages events in the store so they roll back with the
// transaction that published them.
type Publisher struct {
	s *Store
}

func (p *Publisher) Publish(ctx context.Context, evs ...events.Event) error {
	return p.s.write(ctx, func(d *state) error {
		d.outbox = append(d.outbox, evs...)
		return nil
	})
}
