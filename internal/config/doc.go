// Package config loads and validates fixture configuration from the
// environment. It exists so the CLI and environment-driven test setups
// share one set of defaults; library callers can ignore it entirely and
// pass options instead.
package config
