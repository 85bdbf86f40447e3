// Package config loads the Heron configuration. Values are layered: tier defaults,
// then an optional TOML file, then HERON_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"github.com/opensource-finance/heron/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. HERON_SERVER_PORT.
const EnvPrefix = "HERON"

// Load builds the configuration. path may be empty.
//
// The tier picks the defaults. It is read from HERON_TIER, or from the file's
// top-level tier key when the environment does not set it.
func Load(path string) (*domain.Config, error) {
	tier := domain.Tier(strings.ToLower(os.Getenv(EnvPrefix + "_TIER")))

	if path != "" && tier == "" {
		var probe struct {
			Tier domain.Tier `toml:"tier"`
		}
		if _, err := toml.DecodeFile(path, &probe); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		tier = probe.Tier
	}

	cfg := domain.DefaultConfig()
	if tier == domain.TierPro {
		cfg = domain.ProConfig()
	}

	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			slog.Warn("ignoring unknown configuration keys", "path", path, "keys", keys)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the components cannot start with.
func Validate(cfg *domain.Config) error {
	switch cfg.Tier {
	case domain.TierCommunity, domain.TierPro:
	default:
		return fmt.Errorf("%w: unknown tier %q", domain.ErrInvalidInput, cfg.Tier)
	}

	switch cfg.Repository.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unknown repository driver %q", domain.ErrInvalidInput, cfg.Repository.Driver)
	}

	switch cfg.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("%w: unknown cache type %q", domain.ErrInvalidInput, cfg.Cache.Type)
	}

	switch cfg.EventBus.Type {
	case "channel", "nats":
	default:
		return fmt.Errorf("%w: unknown event bus type %q", domain.ErrInvalidInput, cfg.EventBus.Type)
	}

	switch cfg.Attachments.Backend {
	case "", "fs":
	case "s3":
		if cfg.Attachments.Bucket == "" {
			return fmt.Errorf("%w: attachments.bucket is required for the s3 backend", domain.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown attachments backend %q", domain.ErrInvalidInput, cfg.Attachments.Backend)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range", domain.ErrInvalidInput, cfg.Server.Port)
	}
	if cfg.Claims.FlagThreshold < 0 {
		return fmt.Errorf("%w: claims.flag_threshold must not be negative", domain.ErrInvalidInput)
	}
	return nil
}
