package dbconn

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Hosted MySQL providers that terminate TLS with their own CA. Profiles
// pointing at such hosts load the configured CA bundle instead of the
// system roots.
const aivenHostSuffix = "aivencloud.com"

func mysqlDSN(p Profile, database string, pool PoolConfig) (string, error) {
	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Secret
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(p.Host, strconv.Itoa(p.port()))
	cfg.DBName = database
	cfg.Timeout = pool.ConnectTimeout
	cfg.ReadTimeout = pool.ReadTimeout
	cfg.WriteTimeout = pool.WriteTimeout
	cfg.ParseTime = true
	cfg.AllowNativePasswords = true

	tlsKey, err := mysqlTLSKey(p)
	if err != nil {
		return "", err
	}
	cfg.TLSConfig = tlsKey

	return cfg.FormatDSN(), nil
}

// mysqlTLSKey resolves the profile's transport mode to a driver TLS config
// name, registering a custom config when the profile needs one. Callers
// never see which branch was taken.
func mysqlTLSKey(p Profile) (string, error) {
	switch p.TransportSecurity {
	case TransportNone, "":
		return "", nil
	case TransportVerifyCA, TransportVerifyFull:
	default:
		return "", &ConfigError{Field: "transport_security", Reason: fmt.Sprintf("%q is not supported", p.TransportSecurity)}
	}

	hosted := strings.HasSuffix(strings.ToLower(p.Host), aivenHostSuffix)

	var roots *x509.CertPool
	if hosted {
		if p.CAFile == "" {
			return "", &ConfigError{Field: "ca_file", Reason: "is required for hosted MySQL with verified TLS"}
		}
		pem, err := os.ReadFile(p.CAFile)
		if err != nil {
			return "", &ConfigError{Field: "ca_file", Reason: fmt.Sprintf("unreadable: %v", err)}
		}
		roots = x509.NewCertPool()
		if !roots.AppendCertsFromPEM(pem) {
			return "", &ConfigError{Field: "ca_file", Reason: "contains no usable certificates"}
		}
	}

	if p.TransportSecurity == TransportVerifyFull && !hosted {
		// Full verification against system roots is built into the driver.
		return "true", nil
	}

	tlsCfg := &tls.Config{RootCAs: roots}
	if p.TransportSecurity == TransportVerifyCA {
		// Verify the chain ourselves and skip hostname checking.
		tlsCfg.InsecureSkipVerify = true
		tlsCfg.VerifyPeerCertificate = chainOnlyVerifier(roots)
	} else {
		tlsCfg.ServerName = p.Host
	}

	key := mysqlTLSConfigName(p)
	if err := mysql.RegisterTLSConfig(key, tlsCfg); err != nil {
		return "", fmt.Errorf("register tls config: %w", err)
	}
	return key, nil
}

func mysqlTLSConfigName(p Profile) string {
	sum := sha256.Sum256([]byte(p.Host + "|" + string(p.TransportSecurity) + "|" + p.CAFile))
	return "sqlbridge-" + hex.EncodeToString(sum[:6])
}

// chainOnlyVerifier validates the presented chain against roots (system
// roots when nil) without binding it to a hostname.
func chainOnlyVerifier(roots *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return fmt.Errorf("server presented no certificate")
		}
		certs := make([]*x509.Certificate, 0, len(rawCerts))
		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return fmt.Errorf("parse server certificate: %w", err)
			}
			certs = append(certs, cert)
		}
		opts := x509.VerifyOptions{
			Roots:         roots,
			Intermediates: x509.NewCertPool(),
		}
		for _, cert := range certs[1:] {
			opts.Intermediates.AddCert(cert)
		}
		_, err := certs[0].Verify(opts)
		return err
	}
}
