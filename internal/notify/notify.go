package notify

import (
	"context"
	"errors"

	"taskbot/internal/model"
)

type Notifier interface {
	Notify(ctx context.Context, event model.Event) error
}

// Multi delivers an event to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event model.Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
