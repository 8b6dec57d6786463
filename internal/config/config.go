package config

import "time"

// Config holds the fixture defaults used by the pgephemeral CLI and by
// callers that prefer environment-driven setup over explicit options.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
}

// ServerConfig contains everything needed to provision and reach an
// ephemeral server.
type ServerConfig struct {
	// Image is the container image to launch, e.g. "postgres:16-alpine".
	Image string `mapstructure:"image" validate:"required"`
	// AdminUser is the bootstrap superuser configured in the image.
	AdminUser string `mapstructure:"admin_user" validate:"required"`
	// AdminPassword is optional; the default trust-auth containers need none.
	AdminPassword string `mapstructure:"admin_password"`
	// BootstrapDatabase is the database administrative connections target.
	BootstrapDatabase string `mapstructure:"bootstrap_database" validate:"required"`
	// ReadyTimeout bounds how long to wait for a new server to accept
	// connections.
	ReadyTimeout time.Duration `mapstructure:"ready_timeout" validate:"required,gt=0"`
	// PollInterval is the delay between readiness probe attempts.
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"required,gt=0"`
	// LogLevel controls structured logging verbosity.
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains settings for temporary logical databases.
type DatabaseConfig struct {
	// NamePrefix is prepended to generated database names.
	NamePrefix string `mapstructure:"name_prefix" validate:"required"`
	// OwnerRole creates a dedicated login role owning each temporary
	// database instead of reusing the administrative user.
	OwnerRole bool `mapstructure:"owner_role"`
}
