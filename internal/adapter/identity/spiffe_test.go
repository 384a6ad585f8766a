package identity

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rl1809/railway-booking/internal/config"
)

// writeSVID issues a CA and a leaf SVID for id and writes them as PEM files.
func writeSVID(t *testing.T, td, id string) config.SPIFFE {
	t.Helper()
	dir := t.TempDir()
	now := time.Now()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("ca key: %v", err)
	}
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "railway test ca"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		URIs:                  []*url.URL{{Scheme: "spiffe", Host: td}},
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("ca cert: %v", err)
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		t.Fatalf("parse ca: %v", err)
	}

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("leaf key: %v", err)
	}
	leafID, err := url.Parse(id)
	if err != nil {
		t.Fatalf("parse id: %v", err)
	}
	leafTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(2),
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(time.Hour),
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		URIs:                  []*url.URL{leafID},
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, caCert, &leafKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("leaf cert: %v", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(leafKey)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	cfg := config.SPIFFE{
		TrustDomain: td,
		CertFile:    filepath.Join(dir, "svid.pem"),
		KeyFile:     filepath.Join(dir, "svid_key.pem"),
		BundleFile:  filepath.Join(dir, "bundle.pem"),
	}
	writePEM(t, cfg.CertFile, "CERTIFICATE", leafDER)
	writePEM(t, cfg.KeyFile, "PRIVATE KEY", keyDER)
	writePEM(t, cfg.BundleFile, "CERTIFICATE", caDER)
	return cfg
}

func writePEM(t *testing.T, path, blockType string, der []byte) {
	t.Helper()
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestServerOptions_Disabled(t *testing.T) {
	opts, err := ServerOptions(config.SPIFFE{TrustDomain: "example.org"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts != nil {
		t.Errorf("expected no options when SPIFFE is not configured, got %d", len(opts))
	}
}

func TestLoad_Errors(t *testing.T) {
	valid := writeSVID(t, "example.org", "spiffe://example.org/railway/api")

	tests := []struct {
		name   string
		mutate func(c *config.SPIFFE)
	}{
		{"bad trust domain", func(c *config.SPIFFE) { c.TrustDomain = "Not A Domain!" }},
		{"missing cert", func(c *config.SPIFFE) { c.CertFile = filepath.Join(t.TempDir(), "missing.pem") }},
		{"missing bundle", func(c *config.SPIFFE) { c.BundleFile = filepath.Join(t.TempDir(), "missing.pem") }},
		{"foreign trust domain", func(c *config.SPIFFE) { c.TrustDomain = "other.org" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if _, err := Load(cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	cfg := writeSVID(t, "example.org", "spiffe://example.org/railway/api")

	peer, err := Load(cfg)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := peer.ID().String(); got != "spiffe://example.org/railway/api" {
		t.Errorf("unexpected id %s", got)
	}

	opts, err := ServerOptions(cfg)
	if err != nil {
		t.Fatalf("ServerOptions failed: %v", err)
	}
	if len(opts) != 1 {
		t.Errorf("expected one server option, got %d", len(opts))
	}
}

func TestMutualTLSHandshake(t *testing.T) {
	cfg := writeSVID(t, "example.org", "spiffe://example.org/railway/api")
	peer, err := Load(cfg)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	opts, err := ServerOptions(cfg)
	if err != nil {
		t.Fatalf("ServerOptions failed: %v", err)
	}
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, health.NewServer())
	go srv.Serve(lis)
	defer srv.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(credentials.NewTLS(peer.ClientTLSConfig())),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health check over mTLS failed: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("unexpected health status %v", resp.Status)
	}
}
