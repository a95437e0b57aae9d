package dbconn

import (
	"fmt"
	"strings"
)

// TransportSecurity selects how the MySQL transport is protected.
type TransportSecurity string

const (
	// TransportNone disables TLS entirely.
	TransportNone TransportSecurity = "none"
	// TransportVerifyCA encrypts and verifies the certificate chain but not
	// the hostname.
	TransportVerifyCA TransportSecurity = "verify_ca"
	// TransportVerifyFull encrypts and verifies both chain and hostname.
	TransportVerifyFull TransportSecurity = "verify_ca_and_host"
)

func ParseTransportSecurity(raw string) (TransportSecurity, error) {
	switch TransportSecurity(strings.ToLower(strings.TrimSpace(raw))) {
	case TransportNone, "":
		return TransportNone, nil
	case TransportVerifyCA:
		return TransportVerifyCA, nil
	case TransportVerifyFull:
		return TransportVerifyFull, nil
	default:
		return "", &ConfigError{Field: "transport_security", Reason: fmt.Sprintf("%q is not supported", raw)}
	}
}

// Profile is the resolved set of parameters needed to reach one backend
// instance. Secret is opaque and never logged; use Redacted for anything
// that ends up in a log line.
type Profile struct {
	Dialect           Dialect
	Host              string
	Port              int
	User              string
	Secret            string
	Database          string
	TransportSecurity TransportSecurity
	CAFile            string
}

// Validate fails with a *ConfigError before any network attempt when a
// required field is missing. The secret is never substituted with a default.
func (p Profile) Validate() error {
	if p.Dialect != DialectMySQL && p.Dialect != DialectSQLServer {
		return &ConfigError{Field: "dialect", Reason: "is required"}
	}
	if strings.TrimSpace(p.Host) == "" {
		return &ConfigError{Field: "host", Reason: "is required"}
	}
	if strings.TrimSpace(p.User) == "" {
		return &ConfigError{Field: "username", Reason: "is required"}
	}
	if p.Secret == "" {
		return &ConfigError{Field: "secret", Reason: "is required"}
	}
	if p.Port < 0 || p.Port > 65535 {
		return &ConfigError{Field: "port", Reason: fmt.Sprintf("%d is out of range", p.Port)}
	}
	return nil
}

func (p Profile) port() int {
	if p.Port > 0 {
		return p.Port
	}
	return p.Dialect.DefaultPort()
}

// Redacted renders the connection target without the secret.
func (p Profile) Redacted() string {
	return fmt.Sprintf("%s://%s@%s:%d secret=%t", p.Dialect, p.User, p.Host, p.port(), p.Secret != "")
}
