package domain

import "time"

// Config holds the complete Heron configuration.
type Config struct {
	// Server settings
	Server ServerConfig `toml:"server"`

	// Tier determines feature availability
	Tier Tier `toml:"tier"`

	// Component configurations
	Repository  RepositoryConfig  `toml:"repository"`
	Cache       CacheConfig       `toml:"cache"`
	EventBus    EventBusConfig    `toml:"event_bus" split_words:"true"`
	Attachments AttachmentsConfig `toml:"attachments"`

	// Domain settings
	Claims   ClaimsConfig   `toml:"claims"`
	Policies PoliciesConfig `toml:"policies"`
	Renewals RenewalsConfig `toml:"renewals"`
	Worker   WorkerConfig   `toml:"worker"`

	// Observability
	Logging LoggingConfig `toml:"logging"`
	Tracing TracingConfig `toml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	ReadTimeout  int    `toml:"read_timeout" split_words:"true"`  // seconds
	WriteTimeout int    `toml:"write_timeout" split_words:"true"` // seconds
}

// AttachmentsConfig selects where supporting documents are stored.
type AttachmentsConfig struct {
	// Backend is "fs" or "s3".
	Backend string `toml:"backend"`

	// Filesystem backend
	Dir string `toml:"dir"`

	// S3 backend
	Bucket       string `toml:"bucket"`
	Region       string `toml:"region"`
	Endpoint     string `toml:"endpoint"`
	UsePathStyle bool   `toml:"use_path_style" split_words:"true"`
	Prefix       string `toml:"prefix"`
}

// ClaimsConfig tunes claim intake.
type ClaimsConfig struct {
	// EligibilityTimeout bounds the store reads of one eligibility check.
	EligibilityTimeout time.Duration `toml:"eligibility_timeout" split_words:"true"`

	// FraudWindow is the trailing window for the customer claim count.
	FraudWindow time.Duration `toml:"fraud_window" split_words:"true"`

	// FlagThreshold is the minimum score that flags a claim.
	FlagThreshold int `toml:"flag_threshold" split_words:"true"`

	// SLAHours is the completion target for claims.
	SLAHours int `toml:"sla_hours" envconfig:"SLA_HOURS"`

	// MaxFileBytes caps each supporting document.
	MaxFileBytes int64 `toml:"max_file_bytes" split_words:"true"`

	// MaxFormMemory is the multipart memory budget before spilling to disk.
	MaxFormMemory int64 `toml:"max_form_memory" split_words:"true"`
}

// PoliciesConfig tunes policy intake.
type PoliciesConfig struct {
	SLAHours int           `toml:"sla_hours" envconfig:"SLA_HOURS"`
	CacheTTL time.Duration `toml:"cache_ttl" split_words:"true"`
}

// RenewalsConfig tunes renewal reminders.
type RenewalsConfig struct {
	// LeadTimes are the default reminder offsets in days before expiry.
	LeadTimes []int `toml:"lead_times" split_words:"true"`

	// Window is how far ahead the sweep looks for expiring policies.
	Window time.Duration `toml:"window"`

	// DedupeWindow suppresses a reminder if one was sent this recently.
	DedupeWindow time.Duration `toml:"dedupe_window" split_words:"true"`
}

// WorkerConfig controls the background worker.
type WorkerConfig struct {
	Enabled              bool          `toml:"enabled"`
	SLASweepInterval     time.Duration `toml:"sla_sweep_interval" envconfig:"SLA_SWEEP_INTERVAL"`
	RenewalSweepInterval time.Duration `toml:"renewal_sweep_interval" split_words:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `toml:"enabled"`
	ServiceName  string `toml:"service_name" split_words:"true"`
	ExporterType string `toml:"exporter_type" split_words:"true"` // stdout, otlp, jaeger
	Endpoint     string `toml:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultLeadTimes are the renewal reminder offsets used when none are given.
var DefaultLeadTimes = []int{30, 14, 7, 2}

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./heron.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Attachments: AttachmentsConfig{
			Backend: "fs",
			Dir:     "./data/claims",
		},
		Claims: ClaimsConfig{
			EligibilityTimeout: 5 * time.Second,
			FraudWindow:        90 * 24 * time.Hour,
			FlagThreshold:      50,
			SLAHours:           72,
			MaxFileBytes:       10 << 20,
			MaxFormMemory:      32 << 20,
		},
		Policies: PoliciesConfig{
			SLAHours: 48,
			CacheTTL: 5 * time.Minute,
		},
		Renewals: RenewalsConfig{
			LeadTimes:    append([]int(nil), DefaultLeadTimes...),
			Window:       30 * 24 * time.Hour,
			DedupeWindow: 7 * 24 * time.Hour,
		},
		Worker: WorkerConfig{
			Enabled:              true,
			SLASweepInterval:     15 * time.Minute,
			RenewalSweepInterval: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "heron",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "heron",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
		NATSQueueGroup:    "heron-worker",
	}
	cfg.Attachments = AttachmentsConfig{
		Backend: "s3",
		Bucket:  "heron-claims",
		Region:  "us-east-1",
		Prefix:  "claims",
	}
	cfg.Tracing.Enabled = true
	return cfg
}
