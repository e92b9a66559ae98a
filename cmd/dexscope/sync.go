package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dexScope/internal/config"
	"dexScope/internal/exchange"
	"dexScope/internal/explorer"
	"dexScope/internal/ingest"
	"dexScope/internal/storage"
	"dexScope/internal/storage/postgres"
)

func runSync(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	out := cfg.SyncOut()
	var sinks storage.Multi
	if out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(out))
	}
	var checkpoint ingest.Checkpointer = ingest.NewFileCheckpoint(cfg.Checkpoint, cfg.CheckpointEnabled)
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, pg)
		if cfg.CheckpointEnabled {
			checkpoint = pg.Checkpoint(postgres.CheckpointName(sess.chainID, sess.exchange.Hex()))
		}
	}

	from, to, err := syncRange(ctx, cfg, sess, checkpoint, logger)
	if err != nil {
		return err
	}
	if from > to {
		logger.Info("sync up to date", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ingestor, err := newIngestor(cfg, sess, logger)
	if err != nil {
		return err
	}

	logger.Info("sync start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("chain_id", sess.chainID),
		zap.String("exchange", sess.exchange.Hex()),
		zap.Uint64("from", from),
		zap.Uint64("to", to),
		zap.Uint64("chunk_size", cfg.ChunkSize),
		zap.String("out", out),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.Bool("backfill_enabled", cfg.BackfillEnabled),
	)

	prefix := ingest.NewPrefixCheckpoint(checkpoint)
	stats, err := ingestor.Run(ctx, from, to, nil, func(batch ingest.Batch) error {
		if batch.Err == nil {
			if err := sinks.PutEventBatch(ctx, batch.Events); err != nil {
				return fmt.Errorf("store events: %w", err)
			}
		}
		if _, err := prefix.Advance(ctx, batch); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
		return nil
	})

	logger.Info("sync complete",
		zap.Int("chunks", stats.Chunks),
		zap.Int("failed_chunks", stats.FailedChunks),
		zap.Int("events", stats.Events),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("decode_errors", stats.DecodeErrors),
	)
	return err
}

func syncRange(ctx context.Context, cfg config.Config, sess *session, checkpoint ingest.Checkpointer, logger *zap.Logger) (uint64, uint64, error) {
	from := cfg.FromBlock
	last, ok, err := checkpoint.Load(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("load checkpoint: %w", err)
	}
	if ok && last+1 > from {
		logger.Info("resume from checkpoint", zap.Uint64("last_processed_block", last))
		from = last + 1
	}

	to := cfg.ToBlock
	if to == 0 {
		latest, err := sess.client.LatestBlockNumber(ctx)
		if err != nil {
			return 0, 0, fmt.Errorf("latest block: %w", err)
		}
		to = latest
	}
	return from, to, nil
}

// newIngestor reads logs from the RPC node, or from the block explorer with
// the node as fallback when backfill is enabled.
func newIngestor(cfg config.Config, sess *session, logger *zap.Logger) (*ingest.Ingestor, error) {
	decoder, err := exchange.NewDecoder()
	if err != nil {
		return nil, err
	}

	var source ingest.LogSource = sess.client
	if cfg.BackfillEnabled {
		if cfg.BackfillURL == "" {
			return nil, fmt.Errorf("backfill url is required when backfill is enabled")
		}
		source = &ingest.FallbackSource{
			Primary:   explorer.NewClient(cfg.BackfillURL, cfg.BackfillAPIKey),
			Secondary: sess.client,
			Logger:    logger,
		}
	}

	return ingest.NewIngestor(ingest.Config{
		ChainID:      sess.chainID,
		Exchange:     sess.exchange,
		ChunkSize:    cfg.ChunkSize,
		ChunkPause:   cfg.ChunkPause,
		MaxAttempts:  cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, source, sess.client, decoder, logger), nil
}
