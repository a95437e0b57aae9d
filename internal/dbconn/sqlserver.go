package dbconn

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

func sqlserverDSN(p Profile, database string, pool PoolConfig) (string, error) {
	// Fail fast on every required field before a network call is possible.
	if strings.TrimSpace(p.Host) == "" {
		return "", &ConfigError{Field: "host", Reason: "is required for sqlserver"}
	}
	if strings.TrimSpace(p.User) == "" {
		return "", &ConfigError{Field: "username", Reason: "is required for sqlserver"}
	}
	if p.Secret == "" {
		return "", &ConfigError{Field: "secret", Reason: "is required for sqlserver"}
	}

	// Callers sometimes paste host:port into the host field.
	host := p.Host
	if h, _, err := net.SplitHostPort(p.Host); err == nil {
		host = h
	}

	query := url.Values{}
	if database != "" {
		query.Set("database", database)
	}
	query.Set("dial timeout", strconv.Itoa(int(pool.ConnectTimeout.Seconds())))
	query.Set("connection timeout", strconv.Itoa(int(pool.ReadTimeout.Seconds())))
	switch p.TransportSecurity {
	case TransportNone, "":
		query.Set("encrypt", "disable")
	case TransportVerifyCA:
		query.Set("encrypt", "true")
		query.Set("TrustServerCertificate", "true")
	case TransportVerifyFull:
		query.Set("encrypt", "true")
		query.Set("TrustServerCertificate", "false")
		if p.CAFile != "" {
			query.Set("certificate", p.CAFile)
		}
	default:
		return "", &ConfigError{Field: "transport_security", Reason: fmt.Sprintf("%q is not supported", p.TransportSecurity)}
	}

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(p.User, p.Secret),
		Host:     net.JoinHostPort(host, strconv.Itoa(p.port())),
		RawQuery: query.Encode(),
	}
	return u.String(), nil
}
