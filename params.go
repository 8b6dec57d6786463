package pgephemeral

import (
	"fmt"
	"net/url"
	"strconv"
)

// TLSMode selects the transport security required for a connection.
type TLSMode int

const (
	// TLSDisable uses a plaintext connection.
	TLSDisable TLSMode = iota
	// TLSRequire encrypts the connection without verifying the server
	// certificate.
	TLSRequire
	// TLSVerifyFull encrypts the connection and verifies the server
	// certificate and hostname.
	TLSVerifyFull
)

// SSLMode returns the libpq sslmode keyword for the mode.
func (m TLSMode) SSLMode() string {
	switch m {
	case TLSRequire:
		return "require"
	case TLSVerifyFull:
		return "verify-full"
	default:
		return "disable"
	}
}

func (m TLSMode) String() string {
	return m.SSLMode()
}

// ConnParams describes how to reach one database on one server. It is a
// plain value: scopes construct it once and pass it down by value, and the
// With* methods return modified copies rather than mutating in place.
type ConnParams struct {
	Host     string
	Port     int
	User     string
	Password string // optional; empty means no password is sent
	Database string
	TLS      TLSMode
}

// WithDatabaseName returns a copy of p pointing at a different database on
// the same server.
func (p ConnParams) WithDatabaseName(name string) ConnParams {
	p.Database = name
	return p
}

// WithCredentials returns a copy of p authenticating as a different user.
func (p ConnParams) WithCredentials(user, password string) ConnParams {
	p.User = user
	p.Password = password
	return p
}

// WithTLS returns a copy of p using the given transport security mode.
func (p ConnParams) WithTLS(mode TLSMode) ConnParams {
	p.TLS = mode
	return p
}

// URL renders the parameters as a postgres:// DSN accepted by the pgx
// stdlib driver.
func (p ConnParams) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.Database,
		RawQuery: "sslmode=" + p.TLS.SSLMode(),
	}
	if p.Password != "" {
		u.User = url.UserPassword(p.User, p.Password)
	} else if p.User != "" {
		u.User = url.User(p.User)
	}
	return u.String()
}

// Redacted renders the parameters for logging with the password masked.
func (p ConnParams) Redacted() string {
	masked := p
	if masked.Password != "" {
		masked.Password = "xxxxx"
	}
	return masked.URL()
}

// Addr returns the host:port pair for the server.
func (p ConnParams) Addr() string {
	return p.Host + ":" + strconv.Itoa(p.Port)
}
