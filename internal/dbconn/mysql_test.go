package dbconn

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testPool() PoolConfig {
	return PoolConfig{}.withDefaults()
}

func TestMySQLDSNWithoutTLS(t *testing.T) {
	p := Profile{Dialect: DialectMySQL, Host: "db.internal", Port: 3307, User: "app", Secret: "pw", TransportSecurity: TransportNone}
	dsn, err := mysqlDSN(p, "sales", testPool())
	if err != nil {
		t.Fatalf("mysqlDSN() error = %v", err)
	}
	if !strings.Contains(dsn, "app:pw@tcp(db.internal:3307)/sales") {
		t.Fatalf("dsn = %q", dsn)
	}
	if strings.Contains(dsn, "tls=") {
		t.Fatalf("dsn = %q, want no tls parameter", dsn)
	}
	if !strings.Contains(dsn, "parseTime=true") {
		t.Fatalf("dsn = %q, want parseTime", dsn)
	}
}

func TestMySQLDSNFullVerificationUsesSystemRoots(t *testing.T) {
	p := Profile{Dialect: DialectMySQL, Host: "db.internal", User: "app", Secret: "pw", TransportSecurity: TransportVerifyFull}
	dsn, err := mysqlDSN(p, "", testPool())
	if err != nil {
		t.Fatalf("mysqlDSN() error = %v", err)
	}
	if !strings.Contains(dsn, "tls=true") {
		t.Fatalf("dsn = %q, want tls=true", dsn)
	}
}

func TestMySQLDSNChainOnlyVerificationRegistersCustomConfig(t *testing.T) {
	p := Profile{Dialect: DialectMySQL, Host: "db.internal", User: "app", Secret: "pw", TransportSecurity: TransportVerifyCA}
	dsn, err := mysqlDSN(p, "", testPool())
	if err != nil {
		t.Fatalf("mysqlDSN() error = %v", err)
	}
	if !strings.Contains(dsn, "tls=sqlbridge-") {
		t.Fatalf("dsn = %q, want registered tls config", dsn)
	}
}

func TestMySQLDSNHostedProviderRequiresCAFile(t *testing.T) {
	p := Profile{Dialect: DialectMySQL, Host: "mysql-prod.j.aivencloud.com", User: "avnadmin", Secret: "pw", TransportSecurity: TransportVerifyFull}
	_, err := mysqlDSN(p, "defaultdb", testPool())
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "ca_file" {
		t.Fatalf("error = %v, want ca_file *ConfigError", err)
	}
}

func TestMySQLDSNHostedProviderLoadsCAFile(t *testing.T) {
	p := Profile{
		Dialect:           DialectMySQL,
		Host:              "mysql-prod.j.aivencloud.com",
		Port:              20138,
		User:              "avnadmin",
		Secret:            "pw",
		TransportSecurity: TransportVerifyFull,
		CAFile:            writeTestCA(t),
	}
	dsn, err := mysqlDSN(p, "defaultdb", testPool())
	if err != nil {
		t.Fatalf("mysqlDSN() error = %v", err)
	}
	if !strings.Contains(dsn, "tls=sqlbridge-") {
		t.Fatalf("dsn = %q, want registered tls config", dsn)
	}
	if strings.Contains(dsn, "tls=true") {
		t.Fatalf("dsn = %q, hosted provider must not use the generic path", dsn)
	}
}

func TestChainOnlyVerifierRejectsUntrustedChain(t *testing.T) {
	caPEM, err := os.ReadFile(writeTestCA(t))
	if err != nil {
		t.Fatalf("read ca: %v", err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(caPEM) {
		t.Fatal("append ca cert")
	}

	otherDER := newSelfSignedDER(t, "untrusted")
	verify := chainOnlyVerifier(roots)
	if err := verify([][]byte{otherDER}, nil); err == nil {
		t.Fatal("expected verification failure for untrusted chain")
	}
	if err := verify(nil, nil); err == nil {
		t.Fatal("expected failure for empty chain")
	}
}

func writeTestCA(t *testing.T) string {
	t.Helper()
	der := newSelfSignedDER(t, "sqlbridge test ca")
	path := filepath.Join(t.TempDir(), "ca.pem")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create ca file: %v", err)
	}
	defer func() { _ = f.Close() }()
	if err := pem.Encode(f, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		t.Fatalf("encode ca pem: %v", err)
	}
	return path
}

func newSelfSignedDER(t *testing.T, cn string) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return der
}
