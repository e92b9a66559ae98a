package ingest

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// FallbackSource queries Primary first and falls back to Secondary when
// Primary errors or returns no logs. Primary is treated as best effort.
type FallbackSource struct {
	Primary   LogSource
	Secondary LogSource
	Logger    *zap.Logger
}

// FilterLogs implements LogSource.
func (s *FallbackSource) FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	if s.Secondary == nil && s.Primary == nil {
		return nil, nil
	}
	if s.Primary != nil {
		logs, err := s.Primary.FilterLogs(ctx, fromBlock, toBlock, addresses, topic0)
		if err == nil && len(logs) > 0 {
			return logs, nil
		}
		if err != nil && s.Logger != nil {
			s.Logger.Debug("primary log source failed", zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock), zap.Error(err))
		}
		if s.Secondary == nil {
			return logs, err
		}
	}
	return s.Secondary.FilterLogs(ctx, fromBlock, toBlock, addresses, topic0)
}
