package ingest

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"dexScope/internal/model"
)

// DefaultPollInterval is the head polling interval in follow mode.
const DefaultPollInterval = 4 * time.Second

// HeadSource reports the latest block number.
type HeadSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

var errChunkDeferred = errors.New("chunk deferred to next poll")

// Follow streams events from block from onward, polling head every interval.
// A chunk that fails is retried on the next poll instead of being skipped.
// The channel is closed when ctx is done.
func (i *Ingestor) Follow(ctx context.Context, head HeadSource, from uint64, interval time.Duration, kinds ...model.EventKind) <-chan model.Event {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	out := make(chan model.Event, 64)

	go func() {
		defer close(out)
		next := from
		for {
			latest, err := head.LatestBlockNumber(ctx)
			switch {
			case err != nil:
				i.logger.Warn("head fetch failed", zap.Error(err))
			case latest >= next:
				_, err := i.Run(ctx, next, latest, kinds, func(batch Batch) error {
					if batch.Err != nil {
						return errChunkDeferred
					}
					for _, event := range batch.Events {
						select {
						case out <- event:
						case <-ctx.Done():
							return ctx.Err()
						}
					}
					next = batch.Range.To + 1
					return nil
				})
				if err != nil && !errors.Is(err, errChunkDeferred) && ctx.Err() == nil {
					i.logger.Warn("follow run failed", zap.Error(err))
				}
			}

			if err := sleep(ctx, interval); err != nil {
				return
			}
		}
	}()
	return out
}
