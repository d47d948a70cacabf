package wauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vitaliisemenov/webhookd/internal/config"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerify_NoCredentialsConfiguredAcceptsEverything(t *testing.T) {
	v := New(&config.Config{})
	r := httptest.NewRequest(http.MethodPost, "/hook", nil)
	assert.NoError(t, v.Verify(r, nil))
}

func TestVerify_SecretRequiresValidSignature(t *testing.T) {
	v := New(&config.Config{Secret: "s3cret"})
	body := []byte(`{"ref":"main"}`)

	r := httptest.NewRequest(http.MethodPost, "/hook", nil)
	r.Header.Set("X-Hub-Signature-256", sign("s3cret", body))
	assert.NoError(t, v.Verify(r, body))

	r2 := httptest.NewRequest(http.MethodPost, "/hook", nil)
	r2.Header.Set("X-Hub-Signature-256", sign("wrong", body))
	assert.Error(t, v.Verify(r2, body))
}

func TestVerify_BasicAuthAlone(t *testing.T) {
	v := New(&config.Config{BasicAuthUser: "u", BasicAuthPassword: "p"})

	r := httptest.NewRequest(http.MethodPost, "/hook", nil)
	r.SetBasicAuth("u", "p")
	assert.NoError(t, v.Verify(r, nil))

	r2 := httptest.NewRequest(http.MethodPost, "/hook", nil)
	r2.SetBasicAuth("u", "wrong")
	assert.Error(t, v.Verify(r2, nil))
}

func TestVerify_BasicAuthAndSecretRequiresBoth(t *testing.T) {
	cfg := &config.Config{
		BasicAuthUser:      "u",
		BasicAuthPassword:  "p",
		Secret:             "s3cret",
		BasicAuthAndSecret: true,
	}
	v := New(cfg)
	body := []byte(`payload`)

	r := httptest.NewRequest(http.MethodPost, "/hook", nil)
	r.SetBasicAuth("u", "p")
	assert.Error(t, v.Verify(r, body), "missing signature must still fail")

	r2 := httptest.NewRequest(http.MethodPost, "/hook", nil)
	r2.SetBasicAuth("u", "p")
	r2.Header.Set("X-Hub-Signature-256", sign("s3cret", body))
	assert.NoError(t, v.Verify(r2, body))
}
