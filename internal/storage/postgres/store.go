package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dexScope/internal/model"
)

//go:embed schema.sql
var schema string

// Store provides Postgres persistence for exchange events and sync state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables the store needs.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutEventBatch inserts events, ignoring logs that were already stored.
func (s *Store) PutEventBatch(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", event.Key(), err)
		}
		orderID, account := eventColumns(event)
		batch.Queue(`
			INSERT INTO exchange_events (
				chain_id, block_number, tx_hash, log_index, kind, order_id, account, event_ts, payload
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (chain_id, tx_hash, log_index) DO NOTHING
		`,
			int64(event.ChainID),
			int64(event.BlockNumber),
			event.TxHash,
			int64(event.LogIndex),
			string(event.Kind),
			orderID,
			account,
			int64(event.Timestamp()),
			payload,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadEvents streams a chain's stored events to fn in chain order.
func (s *Store) LoadEvents(ctx context.Context, chainID uint64, fn func(model.Event) error) error {
	rows, err := s.pool.Query(ctx, `
		SELECT payload FROM exchange_events
		WHERE chain_id = $1
		ORDER BY block_number, log_index
	`, int64(chainID))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return err
		}
		var event model.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("decode stored event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
	return rows.Err()
}

// LoadState returns last_processed_block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts last_processed_block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}

// Checkpoint adapts a named state row to the ingest checkpoint interface.
type Checkpoint struct {
	store *Store
	name  string
}

func (s *Store) Checkpoint(name string) *Checkpoint {
	return &Checkpoint{store: s, name: name}
}

func (c *Checkpoint) Load(ctx context.Context) (uint64, bool, error) {
	return c.store.LoadState(ctx, c.name)
}

func (c *Checkpoint) Save(ctx context.Context, block uint64) error {
	return c.store.SaveState(ctx, c.name, block)
}

// CheckpointName is the state row used for an exchange on a chain.
func CheckpointName(chainID uint64, exchange string) string {
	return fmt.Sprintf("sync:%d:%s", chainID, exchange)
}

func eventColumns(event model.Event) (orderID, account *string) {
	switch {
	case event.Order != nil:
		id := event.Order.Key()
		user := event.Order.User.Hex()
		return &id, &user
	case event.Transfer != nil:
		user := event.Transfer.User.Hex()
		return nil, &user
	}
	return nil, nil
}
