package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpointer persists the last fully ingested block.
type Checkpointer interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, block uint64) error
}

// Checkpoint is the on-disk checkpoint record.
type Checkpoint struct {
	LastProcessedBlock uint64 `json:"last_processed_block"`
	UpdatedAt          string `json:"updated_at"`
}

// FileCheckpoint persists checkpoints to a JSON file.
type FileCheckpoint struct {
	path    string
	enabled bool
}

func NewFileCheckpoint(path string, enabled bool) *FileCheckpoint {
	return &FileCheckpoint{path: path, enabled: enabled && path != ""}
}

func (c *FileCheckpoint) Load(_ context.Context) (uint64, bool, error) {
	if c == nil || !c.enabled {
		return 0, false, nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return 0, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	return cp.LastProcessedBlock, true, nil
}

func (c *FileCheckpoint) Save(_ context.Context, block uint64) error {
	if c == nil || !c.enabled {
		return nil
	}

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	data, err := json.Marshal(Checkpoint{
		LastProcessedBlock: block,
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// PrefixCheckpoint advances a Checkpointer only across an unbroken prefix of
// successful chunks, so a chunk skipped after retries is fetched again on the
// next run.
type PrefixCheckpoint struct {
	checkpoint Checkpointer
	broken     bool
}

func NewPrefixCheckpoint(checkpoint Checkpointer) *PrefixCheckpoint {
	return &PrefixCheckpoint{checkpoint: checkpoint}
}

// Advance records the outcome of batch and saves its end block while no
// earlier batch has failed. It reports whether the checkpoint was saved.
func (p *PrefixCheckpoint) Advance(ctx context.Context, batch Batch) (bool, error) {
	if batch.Err != nil {
		p.broken = true
	}
	if p.broken || p.checkpoint == nil {
		return false, nil
	}
	if err := p.checkpoint.Save(ctx, batch.Range.To); err != nil {
		return false, err
	}
	return true, nil
}
