package config

import (
	"fmt"
	"time"

	"custodyledger/pkg/domain"
)

// Ledger is the ledgerd configuration.
type Ledger struct {
	HTTPAddr        string        `env:"LEDGER_HTTP_ADDR"         envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"LEDGER_SHUTDOWN_TIMEOUT"  envDefault:"10s"`
	LogLevel        string        `env:"LEDGER_LOG_LEVEL"         envDefault:"info"`

	StorageDriver string `env:"LEDGER_STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath    string `env:"LEDGER_SQLITE_PATH"    envDefault:"data/custodyledger.db"`
	PostgresDSN   string `env:"LEDGER_POSTGRES_DSN"`

	BlobDriver      string `env:"LEDGER_BLOB_DRIVER"         envDefault:"memory"`
	BlobFSRoot      string `env:"LEDGER_BLOB_FS_ROOT"        envDefault:"data/documents"`
	BlobS3Region    string `env:"LEDGER_BLOB_S3_REGION"`
	BlobS3Bucket    string `env:"LEDGER_BLOB_S3_BUCKET"`
	BlobS3Endpoint  string `env:"LEDGER_BLOB_S3_ENDPOINT"`
	BlobS3AccessKey string `env:"LEDGER_BLOB_S3_ACCESS_KEY_ID"`
	BlobS3SecretKey string `env:"LEDGER_BLOB_S3_SECRET_ACCESS_KEY"`
	BlobS3PathStyle bool   `env:"LEDGER_BLOB_S3_PATH_STYLE"`

	InitialDigest       string        `env:"LEDGER_INITIAL_DIGEST"`
	BootstrapRegulators []string      `env:"LEDGER_BOOTSTRAP_REGULATORS" envSeparator:","`
	RegistrationPolicy  string        `env:"LEDGER_REGISTRATION_POLICY"  envDefault:"open"`
	HashPolicy          string        `env:"LEDGER_HASH_POLICY"          envDefault:"open"`
	StrictItems         bool          `env:"LEDGER_STRICT_ITEMS"`
	TransferTimeout     time.Duration `env:"LEDGER_TRANSFER_TIMEOUT"     envDefault:"5s"`
	EventLog            string        `env:"LEDGER_EVENT_LOG"`
	DemoFunds           []string      `env:"LEDGER_DEMO_FUNDS"           envSeparator:","`
	DemoAccounts        bool          `env:"LEDGER_DEMO_ACCOUNTS"        envDefault:"false"`

	OTelEnabled  bool   `env:"LEDGER_OTEL_ENABLED" envDefault:"true"`
	OTelEndpoint string `env:"LEDGER_OTEL_ENDPOINT"`
	TraceLog     string `env:"LEDGER_TRACE_LOG"`
	AuditLog     bool   `env:"LEDGER_AUDIT_LOG"    envDefault:"true"`
}

// LoadLedger parses the ledgerd configuration from the environment.
func LoadLedger() (Ledger, error) {
	var cfg Ledger
	if err := ParseEnv(&cfg); err != nil {
		return Ledger{}, err
	}
	return cfg, nil
}

// Regulators parses the bootstrap regulator identities.
func (c Ledger) Regulators() ([]domain.Identity, error) {
	out := make([]domain.Identity, 0, len(c.BootstrapRegulators))
	for _, raw := range c.BootstrapRegulators {
		if raw == "" {
			continue
		}
		id, err := domain.ParseIdentity(raw)
		if err != nil {
			return nil, fmt.Errorf("LEDGER_BOOTSTRAP_REGULATORS: %w", err)
		}
		out = append(out, id)
	}
	return out, nil
}

// Digest parses the initial integrity digest; empty yields the zero digest.
func (c Ledger) Digest() (domain.Digest, error) {
	if c.InitialDigest == "" {
		return domain.Digest{}, nil
	}
	d, err := domain.ParseDigest(c.InitialDigest)
	if err != nil {
		return domain.Digest{}, fmt.Errorf("LEDGER_INITIAL_DIGEST: %w", err)
	}
	return d, nil
}
