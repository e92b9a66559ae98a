package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dexScope/internal/chain"
	"dexScope/internal/exchange"
	"dexScope/internal/model"
	"dexScope/internal/orchestrator"
	"dexScope/internal/units"
)

type balanceView struct {
	Symbol   string `json:"symbol"`
	Wallet   string `json:"wallet"`
	Exchange string `json:"exchange"`
}

type sheetView struct {
	Account string      `json:"account"`
	Token0  balanceView `json:"token0"`
	Token1  balanceView `json:"token1"`
}

func formatSheet(pair model.TokenPair, sheet model.BalanceSheet) sheetView {
	format := func(token model.Token, balances model.BalancePair) balanceView {
		return balanceView{
			Symbol:   token.Symbol,
			Wallet:   units.FormatAmount(balances.Wallet, token.Decimals),
			Exchange: units.FormatAmount(balances.Exchange, token.Decimals),
		}
	}
	return sheetView{
		Account: sheet.Account.Hex(),
		Token0:  format(pair.Token0, sheet.Token0),
		Token1:  format(pair.Token1, sheet.Token1),
	}
}

type txResult struct {
	State    model.TransactionState `json:"state"`
	Balances sheetView              `json:"balances"`
}

// withOrchestrator connects a signing session and runs action against it.
func withOrchestrator(cmd *cobra.Command, action func(ctx context.Context, orch *orchestrator.Orchestrator, pair model.TokenPair) (model.TransactionState, error)) error {
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

	opts, from, err := chain.NewTransactor(cfg.PrivateKey, sess.chainID)
	if err != nil {
		return err
	}
	writer, err := exchange.NewWriter(sess.client.Backend(), sess.client.DeployBackend(), opts, sess.exchange)
	if err != nil {
		return err
	}
	orch := orchestrator.New(orchestrator.Config{}, exchange.Session{Reader: sess.reader, Writer: writer}, sess.reader, pair, logger)

	logger.Info("transaction start", zap.String("account", from.Hex()), zap.String("pair", pair.Symbols()))
	state, actionErr := action(ctx, orch, pair)

	if err := printJSON(cmd.OutOrStdout(), txResult{State: state, Balances: formatSheet(pair, orch.Balances())}); err != nil {
		return err
	}
	if actionErr != nil && state.Error != "" {
		return fmt.Errorf("%s: %w", state.Error, actionErr)
	}
	return actionErr
}

func runTransfer(cmd *cobra.Command, direction model.TransactionType, args []string) error {
	return withOrchestrator(cmd, func(ctx context.Context, orch *orchestrator.Orchestrator, pair model.TokenPair) (model.TransactionState, error) {
		token, err := pairToken(pair, args[0])
		if err != nil {
			return model.TransactionState{}, err
		}
		amount, err := units.ParseAmount(args[1], token.Decimals)
		if err != nil {
			return model.TransactionState{}, err
		}
		return orch.Transfer(ctx, direction, token.Address, amount)
	})
}

func runMakeOrder(cmd *cobra.Command, args []string) error {
	side := model.OrderType(strings.ToLower(args[0]))
	if side != model.OrderBuy && side != model.OrderSell {
		return fmt.Errorf("order side must be buy or sell, got %q", args[0])
	}
	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[1], err)
	}
	price, err := decimal.NewFromString(args[2])
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", args[2], err)
	}
	return withOrchestrator(cmd, func(ctx context.Context, orch *orchestrator.Orchestrator, _ model.TokenPair) (model.TransactionState, error) {
		return orch.MakeOrder(ctx, side, amount, price)
	})
}

func runCancelOrder(cmd *cobra.Command, args []string) error {
	id, err := parseOrderID(args[0])
	if err != nil {
		return err
	}
	return withOrchestrator(cmd, func(ctx context.Context, orch *orchestrator.Orchestrator, _ model.TokenPair) (model.TransactionState, error) {
		return orch.CancelOrder(ctx, id)
	})
}

func runFillOrder(cmd *cobra.Command, args []string) error {
	id, err := parseOrderID(args[0])
	if err != nil {
		return err
	}
	return withOrchestrator(cmd, func(ctx context.Context, orch *orchestrator.Orchestrator, _ model.TokenPair) (model.TransactionState, error) {
		return orch.FillOrder(ctx, id)
	})
}

// pairToken accepts "token0", "token1", a symbol, or an address.
func pairToken(pair model.TokenPair, name string) (model.Token, error) {
	for _, token := range []model.Token{pair.Token0, pair.Token1} {
		if strings.EqualFold(name, token.Symbol) || strings.EqualFold(name, token.Address.Hex()) {
			return token, nil
		}
	}
	switch strings.ToLower(name) {
	case "token0":
		return pair.Token0, nil
	case "token1":
		return pair.Token1, nil
	}
	return model.Token{}, fmt.Errorf("token %q is not part of %s", name, pair.Symbols())
}

func parseOrderID(value string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok || id.Sign() <= 0 {
		return nil, fmt.Errorf("invalid order id %q", value)
	}
	return id, nil
}
