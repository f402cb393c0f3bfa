package config

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestLoadLedgerDefaults(t *testing.T) {
	cfg, err := LoadLedger()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.StorageDriver != "sqlite" || cfg.BlobDriver != "memory" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.TransferTimeout != 5*time.Second || cfg.RegistrationPolicy != "open" || cfg.HashPolicy != "open" {
		t.Fatalf("unexpected ledger defaults %+v", cfg)
	}
	if cfg.DemoAccounts || cfg.TraceLog != "" || !cfg.AuditLog {
		t.Fatalf("deposits must be off and auditing on by default: %+v", cfg)
	}
	regs, err := cfg.Regulators()
	if err != nil || len(regs) != 0 {
		t.Fatalf("unexpected regulators %v %v", regs, err)
	}
	if d, err := cfg.Digest(); err != nil || d != (common.Hash{}) {
		t.Fatalf("unexpected digest %s %v", d.Hex(), err)
	}
}

func TestLoadLedgerFromEnv(t *testing.T) {
	t.Setenv("LEDGER_STORAGE_DRIVER", "postgres")
	t.Setenv("LEDGER_TRANSFER_TIMEOUT", "250ms")
	t.Setenv("LEDGER_STRICT_ITEMS", "true")
	t.Setenv("LEDGER_DEMO_ACCOUNTS", "true")
	t.Setenv("LEDGER_TRACE_LOG", "/tmp/ledger-trace.jsonl")
	t.Setenv("LEDGER_BOOTSTRAP_REGULATORS", "0x00000000000000000000000000000000000000d4,0x00000000000000000000000000000000000000d5")
	t.Setenv("LEDGER_INITIAL_DIGEST", "0x5f16f4c7f149ac4f9510d9cf8cf384038ad348b3bcdc01915f95de12df9d1b02")

	cfg, err := LoadLedger()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageDriver != "postgres" || cfg.TransferTimeout != 250*time.Millisecond || !cfg.StrictItems {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if !cfg.DemoAccounts || cfg.TraceLog != "/tmp/ledger-trace.jsonl" {
		t.Fatalf("unexpected demo/trace config %+v", cfg)
	}
	regs, err := cfg.Regulators()
	if err != nil || len(regs) != 2 || regs[0] != common.HexToAddress("0xd4") {
		t.Fatalf("unexpected regulators %v %v", regs, err)
	}
	if d, err := cfg.Digest(); err != nil || d == (common.Hash{}) {
		t.Fatalf("unexpected digest %s %v", d.Hex(), err)
	}
}

func TestLedgerInvalidValues(t *testing.T) {
	t.Setenv("LEDGER_TRANSFER_TIMEOUT", "soon")
	if _, err := LoadLedger(); err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env error, got %v", err)
	}

	cfg := Ledger{BootstrapRegulators: []string{"nope"}, InitialDigest: "0x01"}
	if _, err := cfg.Regulators(); err == nil || !strings.Contains(err.Error(), "LEDGER_BOOTSTRAP_REGULATORS") {
		t.Fatalf("expected regulator error, got %v", err)
	}
	if _, err := cfg.Digest(); err == nil || !strings.Contains(err.Error(), "LEDGER_INITIAL_DIGEST") {
		t.Fatalf("expected digest error, got %v", err)
	}
}
