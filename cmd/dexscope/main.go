package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dexScope/internal/chain"
	"dexScope/internal/config"
	"dexScope/internal/exchange"
	"dexScope/internal/model"
)

func main() {
	root := &cobra.Command{
		Use:          "dexscope",
		Short:        "Order book and trading client for an on-chain exchange",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Ingest exchange events into JSONL and optionally Postgres",
		RunE:  runSync,
	}
	addChainFlags(syncCmd)
	addIngestFlags(syncCmd)
	syncCmd.Flags().String("out", "", "output events JSONL (default "+config.DefaultOut+" unless --pg-dsn is set)")
	syncCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	syncCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	syncCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	root.AddCommand(syncCmd)

	for _, view := range []struct {
		use, short string
		run        func(*cobra.Command, []string) error
	}{
		{"book", "Print the order book of the active pair", runBook},
		{"chart", "Print hourly OHLC candles of the active pair", runChart},
		{"trades", "Print trade history, or one account's history with --account", runTrades},
	} {
		cmd := &cobra.Command{Use: view.use, Short: view.short, RunE: view.run}
		addChainFlags(cmd)
		addPairFlags(cmd)
		addIngestFlags(cmd)
		cmd.Flags().String("in", "", "read events from a JSONL file instead of the chain")
		cmd.Flags().String("pg-dsn", "", "read events from Postgres instead of the chain")
		if view.use == "trades" {
			cmd.Flags().String("account", "", "account address for per-account history")
		}
		root.AddCommand(cmd)
	}

	balancesCmd := &cobra.Command{
		Use:   "balances",
		Short: "Print wallet and exchange balances of an account",
		RunE:  runBalances,
	}
	addChainFlags(balancesCmd)
	addPairFlags(balancesCmd)
	balancesCmd.Flags().String("account", "", "account address")
	root.AddCommand(balancesCmd)

	for _, transfer := range []struct {
		use       string
		direction model.TransactionType
	}{
		{"deposit", model.TxDeposit},
		{"withdraw", model.TxWithdraw},
	} {
		direction := transfer.direction
		cmd := &cobra.Command{
			Use:   transfer.use + " <token0|token1> <amount>",
			Short: string(direction) + " tokens to or from the exchange",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTransfer(cmd, direction, args)
			},
		}
		addChainFlags(cmd)
		addPairFlags(cmd)
		addSignerFlags(cmd)
		root.AddCommand(cmd)
	}

	orderCmd := &cobra.Command{
		Use:   "order",
		Short: "Make, cancel, or fill orders",
	}
	makeCmd := &cobra.Command{
		Use:   "make <buy|sell> <amount> <price>",
		Short: "Place an order for amount of token0 at price token1 per token0",
		Args:  cobra.ExactArgs(3),
		RunE:  runMakeOrder,
	}
	cancelCmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an open order",
		Args:  cobra.ExactArgs(1),
		RunE:  runCancelOrder,
	}
	fillCmd := &cobra.Command{
		Use:   "fill <id>",
		Short: "Fill an open order",
		Args:  cobra.ExactArgs(1),
		RunE:  runFillOrder,
	}
	for _, cmd := range []*cobra.Command{makeCmd, cancelCmd, fillCmd} {
		addChainFlags(cmd)
		addPairFlags(cmd)
		addSignerFlags(cmd)
		orderCmd.AddCommand(cmd)
	}
	root.AddCommand(orderCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow new exchange events and keep the book up to date",
		RunE:  runWatch,
	}
	addChainFlags(watchCmd)
	addPairFlags(watchCmd)
	addIngestFlags(watchCmd)
	watchCmd.Flags().Duration("poll-interval", 4*time.Second, "head polling interval")
	watchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	root.AddCommand(watchCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addChainFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "JSON-RPC URL")
	cmd.Flags().Uint64("chain-id", 0, "expected chain id, 0 accepts any")
	cmd.Flags().String("exchange", "", "exchange contract address")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func addPairFlags(cmd *cobra.Command) {
	cmd.Flags().String("token0", "", "base token address")
	cmd.Flags().String("token1", "", "quote token address")
}

func addIngestFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64("from", 0, "start block (inclusive)")
	cmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	cmd.Flags().Uint64("chunk-size", 500, "blocks per log query")
	cmd.Flags().Duration("chunk-pause", 250*time.Millisecond, "pause between log queries")
	cmd.Flags().Int("max-retries", 4, "maximum attempts per log query")
	cmd.Flags().Duration("retry-backoff", time.Second, "retry backoff step")
	cmd.Flags().Bool("backfill-enabled", false, "query the block explorer before the RPC node")
	cmd.Flags().String("backfill-url", "https://api.etherscan.io/api", "block explorer API URL")
	cmd.Flags().String("backfill-api-key", "", "block explorer API key")
}

func addSignerFlags(cmd *cobra.Command) {
	cmd.Flags().String("private-key", "", "hex private key of the signing account")
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// session bundles a verified chain connection with the exchange it serves.
type session struct {
	client   *chain.Client
	chainID  uint64
	exchange common.Address
	reader   *exchange.Reader
}

func connect(ctx context.Context, cfg config.Config, logger *zap.Logger) (*session, error) {
	if err := cfg.RequireRPC(); err != nil {
		return nil, err
	}
	exchangeAddr, err := cfg.ExchangeAddress()
	if err != nil {
		return nil, err
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	chainID, err := client.CheckExchange(ctx, cfg.ChainID, exchangeAddr)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%s: %w", chain.Describe(err), err)
	}

	return &session{
		client:   client,
		chainID:  chainID,
		exchange: exchangeAddr,
		reader:   exchange.NewReader(client, exchangeAddr, logger),
	}, nil
}

func (s *session) Close() {
	s.client.Close()
}

func (s *session) loadPair(ctx context.Context, cfg config.Config) (model.TokenPair, error) {
	token0, token1, err := cfg.PairAddresses()
	if err != nil {
		return model.TokenPair{}, err
	}
	return s.reader.LoadPair(ctx, token0, token1)
}

func printJSON(w io.Writer, value interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
