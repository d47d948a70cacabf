// Package tlsutil validates and loads the TLS material for serving HTTPS,
// failing fast with a descriptive error rather than letting a missing
// certificate surface as an opaque bind failure.
package tlsutil

import (
	"crypto/tls"
	"fmt"
	"os"

	"github.com/vitaliisemenov/webhookd/internal/config"
)

// LoadConfig builds a *tls.Config from the webhook dispatcher's
// configured cert chain and private key, after checking both files exist.
func LoadConfig(cfg *config.Config) (*tls.Config, error) {
	if _, err := os.Stat(cfg.SSLCertChain); err != nil {
		return nil, fmt.Errorf("ssl_cert_chain %q is not readable: %w", cfg.SSLCertChain, err)
	}
	if _, err := os.Stat(cfg.SSLPrivateKey); err != nil {
		return nil, fmt.Errorf("ssl_private_key %q is not readable: %w", cfg.SSLPrivateKey, err)
	}

	cert, err := tls.LoadX509KeyPair(cfg.SSLCertChain, cfg.SSLPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("loading TLS key pair: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
