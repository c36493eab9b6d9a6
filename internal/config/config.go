package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Clock sources.
const (
	ClockSystem = "system"
	ClockChain  = "chain"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
	Solana  SolanaConfig  `mapstructure:"solana"`
	Auction AuctionConfig `mapstructure:"auction"`
	Feed    FeedConfig    `mapstructure:"feed"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EnableAirdrop   bool          `mapstructure:"enable_airdrop"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`
	MaxConns      int32  `mapstructure:"max_conns"`
}

type SolanaConfig struct {
	RPCURL     string        `mapstructure:"rpc_url"`
	Commitment string        `mapstructure:"commitment"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	ProgramID  string        `mapstructure:"program_id"`
	Clock      string        `mapstructure:"clock"`
}

type AuctionConfig struct {
	// CurveStep is the spacing in seconds of stored price curve samples.
	CurveStep int64 `mapstructure:"curve_step"`
}

type FeedConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Load reads configuration from defaults, an optional YAML file and
// AUCTION_-prefixed environment variables, in increasing precedence.
// An empty path skips the file.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUCTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.enable_airdrop", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.development", false)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.clickhouse_dsn", "")
	v.SetDefault("storage.max_conns", 10)
	v.SetDefault("solana.rpc_url", "https://api.devnet.solana.com")
	v.SetDefault("solana.commitment", "confirmed")
	v.SetDefault("solana.timeout", "30s")
	v.SetDefault("solana.max_retries", 3)
	v.SetDefault("solana.program_id", "4zs7e3yCWCb9SzuCvCDEJgd6qeLC695BUyuJZWptu5GU")
	v.SetDefault("solana.clock", ClockSystem)
	v.SetDefault("auction.curve_step", 60)
	v.SetDefault("feed.interval", "1s")
	v.SetDefault("feed.write_timeout", "5s")
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres backend"))
		}
		if c.Storage.ClickhouseDSN == "" {
			errs = append(errs, errors.New("storage.clickhouse_dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}

	switch c.Solana.Clock {
	case ClockSystem:
	case ClockChain:
		if c.Solana.RPCURL == "" {
			errs = append(errs, errors.New("solana.rpc_url is required for the chain clock"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown solana.clock %q", c.Solana.Clock))
	}

	if c.Auction.CurveStep <= 0 {
		errs = append(errs, errors.New("auction.curve_step must be positive"))
	}
	if c.Feed.Interval <= 0 {
		errs = append(errs, errors.New("feed.interval must be positive"))
	}

	return errors.Join(errs...)
}
