package storage

import (
	"context"

	"dexScope/internal/model"
)

// Storage defines a sink for decoded exchange events.
type Storage interface {
	PutEventBatch(ctx context.Context, events []model.Event) error
}

// Multi fans a batch out to every sink in order and stops at the first error.
type Multi []Storage

func (m Multi) PutEventBatch(ctx context.Context, events []model.Event) error {
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.PutEventBatch(ctx, events); err != nil {
			return err
		}
	}
	return nil
}
