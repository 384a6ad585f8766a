package identity

import (
	"crypto/tls"
	"fmt"

	"github.com/spiffe/go-spiffe/v2/bundle/x509bundle"
	"github.com/spiffe/go-spiffe/v2/spiffeid"
	"github.com/spiffe/go-spiffe/v2/spiffetls/tlsconfig"
	"github.com/spiffe/go-spiffe/v2/svid/x509svid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/rl1809/railway-booking/internal/config"
)

// staticSource serves a single SVID loaded from disk.
type staticSource struct {
	svid *x509svid.SVID
}

func (s *staticSource) GetX509SVID() (*x509svid.SVID, error) {
	return s.svid, nil
}

// Peer holds the workload identity and the trust bundle it verifies peers
// against. Any workload in the trust domain is accepted.
type Peer struct {
	source *staticSource
	bundle *x509bundle.Bundle
	td     spiffeid.TrustDomain
}

func Load(cfg config.SPIFFE) (*Peer, error) {
	td, err := spiffeid.TrustDomainFromString(cfg.TrustDomain)
	if err != nil {
		return nil, fmt.Errorf("trust domain %q: %w", cfg.TrustDomain, err)
	}

	svid, err := x509svid.Load(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load svid: %w", err)
	}
	if !svid.ID.MemberOf(td) {
		return nil, fmt.Errorf("svid %s is not a member of %s", svid.ID, td)
	}

	bundle, err := x509bundle.Load(td, cfg.BundleFile)
	if err != nil {
		return nil, fmt.Errorf("load bundle: %w", err)
	}

	return &Peer{source: &staticSource{svid: svid}, bundle: bundle, td: td}, nil
}

func (p *Peer) ID() spiffeid.ID {
	return p.source.svid.ID
}

func (p *Peer) ServerTLSConfig() *tls.Config {
	return tlsconfig.MTLSServerConfig(p.source, p.bundle, tlsconfig.AuthorizeMemberOf(p.td))
}

func (p *Peer) ClientTLSConfig() *tls.Config {
	return tlsconfig.MTLSClientConfig(p.source, p.bundle, tlsconfig.AuthorizeMemberOf(p.td))
}

// ServerOptions returns the gRPC server options for cfg. Without a complete
// SPIFFE configuration the listener stays plaintext and no options are
// returned.
func ServerOptions(cfg config.SPIFFE) ([]grpc.ServerOption, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	peer, err := Load(cfg)
	if err != nil {
		return nil, err
	}
	return []grpc.ServerOption{grpc.Creds(credentials.NewTLS(peer.ServerTLSConfig()))}, nil
}
