package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"dexScope/internal/chain"
	"dexScope/internal/metrics"
	"dexScope/internal/model"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkPause   = 250 * time.Millisecond
	DefaultMaxAttempts  = 4
	DefaultRetryBackoff = time.Second
)

// LogSource returns raw logs for a block range.
type LogSource interface {
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// BlockClock resolves block timestamps.
type BlockClock interface {
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// Decoder turns raw logs into events.
type Decoder interface {
	Topics(kinds ...model.EventKind) []common.Hash
	Decode(chainID uint64, log types.Log) (model.Event, error)
}

// Config holds runtime settings for the ingestor.
type Config struct {
	ChainID      uint64
	Exchange     common.Address
	ChunkSize    uint64
	ChunkPause   time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Batch is the outcome of one block chunk. Err is set when the chunk was
// skipped after exhausting retries.
type Batch struct {
	Range  BlockRange
	Events []model.Event
	Err    error
}

// Stats summarizes a Run.
type Stats struct {
	Chunks       int
	FailedChunks int
	Events       int
	Duplicates   int
	DecodeErrors int
}

// Ingestor pulls exchange logs in bounded chunks and normalizes them.
type Ingestor struct {
	cfg     Config
	source  LogSource
	clock   BlockClock
	decoder Decoder
	logger  *zap.Logger
	// seen holds keys of the chunk being decoded and previous those of the
	// chunk before it, which bounds dedup memory in follow mode.
	seen     map[string]struct{}
	previous map[string]struct{}
}

// NewIngestor builds an Ingestor. clock may be nil, in which case transfer
// timestamps stay zero.
func NewIngestor(cfg Config, source LogSource, clock BlockClock, decoder Decoder, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	return &Ingestor{
		cfg:     cfg,
		source:  source,
		clock:   clock,
		decoder: decoder,
		logger:  logger,
		seen:    make(map[string]struct{}),
	}
}

// Run fetches [from, to] chunk by chunk and hands every chunk to handle.
// A chunk that keeps failing is reported with Batch.Err and skipped; an error
// returned by handle stops the run.
func (i *Ingestor) Run(ctx context.Context, from, to uint64, kinds []model.EventKind, handle func(Batch) error) (Stats, error) {
	var stats Stats
	if i.source == nil {
		return stats, fmt.Errorf("log source is nil")
	}
	if i.decoder == nil {
		return stats, fmt.Errorf("decoder is nil")
	}

	ranges, err := SplitRange(from, to, i.cfg.ChunkSize)
	if err != nil {
		return stats, err
	}
	topics := i.decoder.Topics(kinds...)
	addresses := []common.Address{i.cfg.Exchange}

	for idx, blockRange := range ranges {
		if idx > 0 && i.cfg.ChunkPause > 0 {
			if err := sleep(ctx, i.cfg.ChunkPause); err != nil {
				return stats, err
			}
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		stats.Chunks++
		i.logger.Debug("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		started := time.Now()
		logs, err := i.filterLogsWithRetry(ctx, blockRange, addresses, topics)
		metrics.ObserveChunk(started)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.FailedChunks++
			metrics.ChunkFailures.Inc()
			i.logger.Warn("skip chunk", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To), zap.Error(err))
			if err := handle(Batch{Range: blockRange, Err: err}); err != nil {
				return stats, err
			}
			continue
		}

		i.rotateSeen()
		events := make([]model.Event, 0, len(logs))
		for _, log := range logs {
			if log.Removed {
				continue
			}
			event, err := i.decoder.Decode(i.cfg.ChainID, log)
			if err != nil {
				stats.DecodeErrors++
				i.logger.Warn("decode log", zap.Uint64("block_number", log.BlockNumber), zap.String("tx_hash", log.TxHash.Hex()), zap.Error(err))
				continue
			}
			if i.isDuplicate(event) {
				stats.Duplicates++
				continue
			}
			if event.Transfer != nil {
				event.Transfer.Timestamp = i.blockTimestamp(ctx, event.BlockNumber)
			}
			metrics.EventsIngested.WithLabelValues(string(event.Kind)).Inc()
			events = append(events, event)
		}
		stats.Events += len(events)

		if err := handle(Batch{Range: blockRange, Events: events}); err != nil {
			return stats, err
		}
		i.logger.Debug("chunk complete", zap.Int("events", len(events)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	return stats, nil
}

// Stream runs the ingestor in the background and delivers events in chain
// order on the returned channel, which is closed when the range is exhausted
// or ctx is done.
func (i *Ingestor) Stream(ctx context.Context, from, to uint64, kinds ...model.EventKind) <-chan model.Event {
	out := make(chan model.Event, 64)
	go func() {
		defer close(out)
		stats, err := i.Run(ctx, from, to, kinds, func(batch Batch) error {
			for _, event := range batch.Events {
				select {
				case out <- event:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			i.logger.Warn("stream stopped", zap.Error(err))
		}
		i.logger.Info("stream complete",
			zap.Int("chunks", stats.Chunks),
			zap.Int("failed_chunks", stats.FailedChunks),
			zap.Int("events", stats.Events),
		)
	}()
	return out
}

func (i *Ingestor) filterLogsWithRetry(ctx context.Context, blockRange BlockRange, addresses []common.Address, topics []common.Hash) ([]types.Log, error) {
	var logs []types.Log
	policy := chain.RetryPolicy{
		MaxAttempts: i.cfg.MaxAttempts,
		BaseDelay:   i.cfg.RetryBackoff,
		Backoff:     chain.Linear,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			metrics.RPCRetries.WithLabelValues("filter_logs").Inc()
			i.logger.Warn("filter logs failed",
				zap.Error(err),
				zap.Bool("rate_limited", chain.IsRateLimit(err)),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Uint64("from", blockRange.From),
				zap.Uint64("to", blockRange.To),
			)
		},
	}
	err := chain.WithRetry(ctx, policy, func(ctx context.Context) error {
		var err error
		logs, err = i.source.FilterLogs(ctx, blockRange.From, blockRange.To, addresses, topics)
		return err
	})
	return logs, err
}

func (i *Ingestor) blockTimestamp(ctx context.Context, number uint64) uint64 {
	if i.clock == nil {
		return 0
	}
	var ts uint64
	policy := chain.RetryPolicy{MaxAttempts: i.cfg.MaxAttempts, BaseDelay: i.cfg.RetryBackoff, Backoff: chain.Linear}
	err := chain.WithRetry(ctx, policy, func(ctx context.Context) error {
		var err error
		ts, err = i.clock.BlockTimestamp(ctx, number)
		return err
	})
	if err != nil {
		i.logger.Warn("block timestamp fetch failed", zap.Uint64("block_number", number), zap.Error(err))
		return 0
	}
	return ts
}

func (i *Ingestor) rotateSeen() {
	i.previous = i.seen
	i.seen = make(map[string]struct{})
}

func (i *Ingestor) isDuplicate(event model.Event) bool {
	key := event.Key()
	if _, ok := i.seen[key]; ok {
		return true
	}
	if _, ok := i.previous[key]; ok {
		return true
	}
	i.seen[key] = struct{}{}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
