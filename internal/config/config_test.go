package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChunkSize != 500 || cfg.ChunkPause != 250*time.Millisecond || cfg.MaxRetries != 4 || cfg.RetryBackoff != time.Second {
		t.Fatalf("unexpected ingest defaults %+v", cfg)
	}
	if !cfg.CheckpointEnabled || cfg.BackfillEnabled || cfg.PollInterval != 4*time.Second || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dexscope.yaml")
	content := "rpc: http://file:8545\nchunk-size: 100\nexchange: 0x1111111111111111111111111111111111111111\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DEXSCOPE_CHUNK_SIZE", "200")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	if err := flags.Parse([]string{"--rpc", "http://flag:8545"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "http://flag:8545" {
		t.Fatalf("rpc = %q, want flag value", cfg.RPCURL)
	}
	if cfg.ChunkSize != 200 {
		t.Fatalf("chunk size = %d, want env value", cfg.ChunkSize)
	}
	if err := cfg.RequireRPC(); err != nil {
		t.Fatalf("require rpc: %v", err)
	}
}

func TestPairAddresses(t *testing.T) {
	cfg := Config{
		Token0: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Token1: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	}
	token0, token1, err := cfg.PairAddresses()
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	if token0 != common.HexToAddress(cfg.Token0) || token1 != common.HexToAddress(cfg.Token1) {
		t.Fatalf("unexpected pair %s %s", token0, token1)
	}

	cfg.Token1 = cfg.Token0
	if _, _, err := cfg.PairAddresses(); err == nil {
		t.Fatalf("expected error for identical tokens")
	}
}

func TestParseAddressRejectsInvalid(t *testing.T) {
	if _, err := ParseAddress("exchange", ""); err == nil {
		t.Fatalf("expected error for empty address")
	}
	if _, err := ParseAddress("exchange", "0x1234"); err == nil {
		t.Fatalf("expected error for short address")
	}
}

func TestSyncOut(t *testing.T) {
	cases := []struct {
		cfg  Config
		want string
	}{
		{Config{}, DefaultOut},
		{Config{PGDSN: "postgres://localhost/dex"}, ""},
		{Config{Out: "events.jsonl", PGDSN: "postgres://localhost/dex"}, "events.jsonl"},
		{Config{Out: "events.jsonl"}, "events.jsonl"},
	}
	for _, tc := range cases {
		if got := tc.cfg.SyncOut(); got != tc.want {
			t.Fatalf("SyncOut(%+v) = %q, want %q", tc.cfg, got, tc.want)
		}
	}
}
