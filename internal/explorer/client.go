// Package explorer reads historical exchange logs from an Etherscan-compatible
// block explorer API.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"dexScope/internal/chain"
)

// PageSize is the maximum number of logs requested per page.
const PageSize = 1000

var ErrExplorer = errors.New("explorer error")

// Client queries module=logs&action=getLogs.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type rawLog struct {
	Address          string   `json:"address"`
	Topics           []string `json:"topics"`
	Data             string   `json:"data"`
	BlockNumber      string   `json:"blockNumber"`
	BlockHash        string   `json:"blockHash"`
	LogIndex         string   `json:"logIndex"`
	TransactionHash  string   `json:"transactionHash"`
	TransactionIndex string   `json:"transactionIndex"`
}

// FilterLogs returns logs emitted by addresses in [fromBlock, toBlock] whose
// first topic is in topic0. Topic filtering happens client side so a single
// query covers every event kind.
func (c *Client) FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	wanted := make(map[common.Hash]struct{}, len(topic0))
	for _, topic := range topic0 {
		wanted[topic] = struct{}{}
	}

	var logs []types.Log
	for _, address := range addresses {
		for page := 1; ; page++ {
			raw, err := c.getLogs(ctx, address, fromBlock, toBlock, page)
			if err != nil {
				return nil, err
			}
			for _, entry := range raw {
				log, err := entry.toLog()
				if err != nil {
					return nil, fmt.Errorf("explorer: decode log: %w", err)
				}
				if len(wanted) > 0 {
					if len(log.Topics) == 0 {
						continue
					}
					if _, ok := wanted[log.Topics[0]]; !ok {
						continue
					}
				}
				logs = append(logs, log)
			}
			if len(raw) < PageSize {
				break
			}
		}
	}
	return logs, nil
}

func (c *Client) getLogs(ctx context.Context, address common.Address, fromBlock, toBlock uint64, page int) ([]rawLog, error) {
	params := url.Values{}
	params.Set("module", "logs")
	params.Set("action", "getLogs")
	params.Set("address", address.Hex())
	params.Set("fromBlock", strconv.FormatUint(fromBlock, 10))
	params.Set("toBlock", strconv.FormatUint(toBlock, 10))
	params.Set("page", strconv.Itoa(page))
	params.Set("offset", strconv.Itoa(PageSize))
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("explorer: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("explorer: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("explorer: read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("explorer: status %d: %w", resp.StatusCode, chain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("explorer: unexpected status %d: %s: %w", resp.StatusCode, chain.Truncate(string(body)), ErrExplorer)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("explorer: decode response: %w", err)
	}

	var logs []rawLog
	if err := json.Unmarshal(env.Result, &logs); err == nil {
		if env.Status != "1" && len(logs) > 0 {
			return nil, fmt.Errorf("explorer: %s: %w", env.Message, ErrExplorer)
		}
		return logs, nil
	}

	// On failure the result is a message string.
	var message string
	_ = json.Unmarshal(env.Result, &message)
	if strings.Contains(strings.ToLower(message), "rate limit") {
		return nil, fmt.Errorf("explorer: %s: %w", message, chain.ErrRateLimited)
	}
	return nil, fmt.Errorf("explorer: %s %s: %w", env.Message, message, ErrExplorer)
}

func (r rawLog) toLog() (types.Log, error) {
	data, err := hexutil.Decode(orEmptyHex(r.Data))
	if err != nil {
		return types.Log{}, fmt.Errorf("data: %w", err)
	}
	blockNumber, err := parseHexUint(r.BlockNumber)
	if err != nil {
		return types.Log{}, fmt.Errorf("block number: %w", err)
	}
	logIndex, err := parseHexUint(r.LogIndex)
	if err != nil {
		return types.Log{}, fmt.Errorf("log index: %w", err)
	}
	txIndex, err := parseHexUint(r.TransactionIndex)
	if err != nil {
		return types.Log{}, fmt.Errorf("transaction index: %w", err)
	}

	topics := make([]common.Hash, 0, len(r.Topics))
	for _, topic := range r.Topics {
		if topic == "" {
			continue
		}
		topics = append(topics, common.HexToHash(topic))
	}

	return types.Log{
		Address:     common.HexToAddress(r.Address),
		Topics:      topics,
		Data:        data,
		BlockNumber: blockNumber,
		BlockHash:   common.HexToHash(r.BlockHash),
		TxHash:      common.HexToHash(r.TransactionHash),
		TxIndex:     uint(txIndex),
		Index:       uint(logIndex),
	}, nil
}

// parseHexUint accepts "0x"-prefixed values with leading zeros and treats
// "0x" or an empty string as zero.
func parseHexUint(value string) (uint64, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return 0, nil
	}
	return strconv.ParseUint(trimmed, 16, 64)
}

func orEmptyHex(value string) string {
	if value == "" {
		return "0x"
	}
	return value
}
