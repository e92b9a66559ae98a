package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dexScope/internal/metrics"
	"dexScope/internal/model"
	"dexScope/internal/orderbook"
)

func runWatch(cmd *cobra.Command, _ []string) error {
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

	pair, err := sess.loadPair(ctx, cfg)
	if err != nil {
		return fmt.Errorf("load pair: %w", err)
	}

	ingestor, err := newIngestor(cfg, sess, logger)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		server := metrics.Serve(cfg.MetricsAddr, logger)
		defer server.Close()
	}

	logger.Info("watch start",
		zap.Uint64("chain_id", sess.chainID),
		zap.String("exchange", sess.exchange.Hex()),
		zap.String("pair", pair.Symbols()),
		zap.Uint64("from", cfg.FromBlock),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	store := orderbook.NewStore(logger)
	events := ingestor.Follow(ctx, sess.client, cfg.FromBlock, cfg.PollInterval)
	err = store.Consume(ctx, events, func(event model.Event) {
		book := store.Book(pair)
		series := store.Series(pair)
		lastPrice, _ := series.LastPrice.Float64()
		metrics.UpdateBook(len(book.BuyOrders), len(book.SellOrders), lastPrice)
		logger.Info("event applied",
			zap.String("kind", string(event.Kind)),
			zap.Uint64("block_number", event.BlockNumber),
			zap.String("tx_hash", event.TxHash),
			zap.Int("buy_orders", len(book.BuyOrders)),
			zap.Int("sell_orders", len(book.SellOrders)),
			zap.String("last_price", series.LastPrice.String()),
			zap.String("last_price_change", series.LastPriceChange),
		)
	})
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
