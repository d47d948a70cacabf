// Package wauth verifies inbound webhook requests against whichever
// credential the operator configured: an HMAC request signature, HTTP
// basic auth, both, or neither.
package wauth

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"net/http"

	"github.com/vitaliisemenov/webhookd/internal/config"
)

// Verifier checks one request against the process-wide configured
// credentials; they are the same for every webhook.
type Verifier struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Verifier {
	return &Verifier{cfg: cfg}
}

// Verify applies the accept rule from the external interface: with
// neither a secret nor basic auth configured, every request is accepted;
// with basic_auth_and_secret set, both must check out; otherwise either
// one succeeding is enough. body is the raw request payload the HMAC
// signature (if any) was computed over.
func (v *Verifier) Verify(r *http.Request, body []byte) error {
	hasSecret := v.cfg.Secret != ""
	hasBasicAuth := v.cfg.BasicAuthUser != "" && v.cfg.BasicAuthPassword != ""

	if !hasSecret && !hasBasicAuth {
		return nil
	}

	if v.cfg.BasicAuthAndSecret {
		if err := v.verifyBasicAuth(r); err != nil {
			return err
		}
		return v.verifySignature(r, body)
	}

	var sigErr, basicErr error
	if hasSecret {
		sigErr = v.verifySignature(r, body)
		if sigErr == nil {
			return nil
		}
	}
	if hasBasicAuth {
		basicErr = v.verifyBasicAuth(r)
		if basicErr == nil {
			return nil
		}
	}

	if sigErr != nil {
		return sigErr
	}
	return basicErr
}

func (v *Verifier) verifyBasicAuth(r *http.Request) error {
	user, password, ok := r.BasicAuth()
	if !ok {
		return fmt.Errorf("missing basic auth credentials")
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(v.cfg.BasicAuthUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(v.cfg.BasicAuthPassword)) == 1
	if !userOK || !passOK {
		return fmt.Errorf("invalid basic auth credentials")
	}
	return nil
}

// verifySignature checks X-Hub-Signature-256 (sha256=<hex>) first, falling
// back to X-Hub-Signature (sha1=<hex>) for compatibility with older
// senders that never adopted the stronger header.
func (v *Verifier) verifySignature(r *http.Request, body []byte) error {
	if sig := r.Header.Get("X-Hub-Signature-256"); sig != "" {
		return checkHMAC(sig, "sha256=", sha256.New, v.cfg.Secret, body)
	}
	if sig := r.Header.Get("X-Hub-Signature"); sig != "" {
		return checkHMAC(sig, "sha1=", sha1.New, v.cfg.Secret, body)
	}
	return fmt.Errorf("missing signature header")
}

func checkHMAC(header, prefix string, newHash func() hash.Hash, secret string, body []byte) error {
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return fmt.Errorf("malformed signature header")
	}
	want, err := hex.DecodeString(header[len(prefix):])
	if err != nil {
		return fmt.Errorf("malformed signature hex: %w", err)
	}

	mac := hmac.New(newHash, []byte(secret))
	mac.Write(body)
	got := mac.Sum(nil)

	if !hmac.Equal(got, want) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
