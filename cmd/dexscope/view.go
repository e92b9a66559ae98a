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
	"dexScope/internal/model"
	"dexScope/internal/orderbook"
	"dexScope/internal/storage"
	"dexScope/internal/storage/postgres"
)

type viewFunc func(cmd *cobra.Command, cfg config.Config, store *orderbook.Store, pair model.TokenPair) error

func runBook(cmd *cobra.Command, _ []string) error {
	return runView(cmd, func(cmd *cobra.Command, _ config.Config, store *orderbook.Store, pair model.TokenPair) error {
		return printJSON(cmd.OutOrStdout(), store.Book(pair))
	})
}

func runChart(cmd *cobra.Command, _ []string) error {
	return runView(cmd, func(cmd *cobra.Command, _ config.Config, store *orderbook.Store, pair model.TokenPair) error {
		return printJSON(cmd.OutOrStdout(), store.Series(pair))
	})
}

func runTrades(cmd *cobra.Command, _ []string) error {
	return runView(cmd, func(cmd *cobra.Command, cfg config.Config, store *orderbook.Store, pair model.TokenPair) error {
		if cfg.Account == "" {
			return printJSON(cmd.OutOrStdout(), store.Trades(pair))
		}
		account, err := cfg.AccountAddress()
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), struct {
			OpenOrders   []model.DecoratedOrder `json:"open_orders"`
			FilledOrders []model.DecoratedOrder `json:"filled_orders"`
			Transfers    []model.Event          `json:"transfers"`
		}{
			OpenOrders:   store.MyOpenOrders(pair, account),
			FilledOrders: store.MyFilledOrders(pair, account),
			Transfers:    store.MyTransfers(account),
		})
	})
}

// runView loads the pair from the chain and the events from a JSONL file,
// Postgres, or the chain itself, then renders one view of the store.
func runView(cmd *cobra.Command, render viewFunc) error {
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

	store := orderbook.NewStore(logger)
	if err := loadEvents(ctx, cfg, sess, store, logger); err != nil {
		return err
	}
	logger.Debug("events loaded",
		zap.String("pair", pair.Symbols()),
		zap.Int("open_orders", len(store.OpenOrders())),
		zap.Int("filled_orders", len(store.FilledOrders())),
	)
	return render(cmd, cfg, store, pair)
}

func loadEvents(ctx context.Context, cfg config.Config, sess *session, store *orderbook.Store, logger *zap.Logger) error {
	apply := func(event model.Event) error {
		if event.ChainID != 0 && event.ChainID != sess.chainID {
			return nil
		}
		store.Apply(event)
		return nil
	}

	switch {
	case cfg.In != "":
		return storage.ReadEvents(cfg.In, apply)
	case cfg.PGDSN != "":
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		return pg.LoadEvents(ctx, sess.chainID, apply)
	}

	to := cfg.ToBlock
	if to == 0 {
		latest, err := sess.client.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("latest block: %w", err)
		}
		to = latest
	}
	ingestor, err := newIngestor(cfg, sess, logger)
	if err != nil {
		return err
	}
	if err := store.Consume(ctx, ingestor.Stream(ctx, cfg.FromBlock, to), nil); err != nil {
		return err
	}
	return ctx.Err()
}

func runBalances(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	account, err := cfg.AccountAddress()
	if err != nil {
		return err
	}

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
	sheet, err := sess.reader.LoadBalances(ctx, pair, account)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), formatSheet(pair, sheet))
}
