package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from PGEPHEMERAL_-prefixed environment variables
// on top of built-in defaults, then validates the result. Environment
// variables use underscores for nesting, e.g. PGEPHEMERAL_SERVER_IMAGE or
// PGEPHEMERAL_DATABASE_NAME_PREFIX.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.image", "postgres:16-alpine")
	v.SetDefault("server.admin_user", "postgres")
	v.SetDefault("server.admin_password", "")
	v.SetDefault("server.bootstrap_database", "postgres")
	v.SetDefault("server.ready_timeout", 30*time.Second)
	v.SetDefault("server.poll_interval", 100*time.Millisecond)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("database.name_prefix", "pgephemeral")
	v.SetDefault("database.owner_role", false)

	v.SetEnvPrefix("PGEPHEMERAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
