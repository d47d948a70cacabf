package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "webhook_server.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeTempConfig(t, `
webhooks:
  - name: deploy-app
    command: "echo {{x}}"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Domain)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 8, cfg.Workers)
	require.Len(t, cfg.Webhooks, 1)
	assert.Equal(t, ModeDeploy, cfg.Webhooks[0].Mode)
	assert.Equal(t, 8, cfg.Webhooks[0].ParallelProcesses)
}

func TestLoadConfig_ModeValidation(t *testing.T) {
	path := writeTempConfig(t, `
webhooks:
  - name: bogus
    command: "echo hi"
    mode: nonsense
`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_DuplicateWebhookName(t *testing.T) {
	path := writeTempConfig(t, `
webhooks:
  - name: a
    command: "echo 1"
  - name: a
    command: "echo 2"
`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfig_Validate_BasicAuthPair(t *testing.T) {
	cfg := &Config{Domain: "127.0.0.1", Port: 8000, Workers: 1, BasicAuthUser: "u"}
	assert.Error(t, cfg.Validate())

	cfg.BasicAuthPassword = "p"
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_BasicAuthAndSecretRequiresAll(t *testing.T) {
	cfg := &Config{Domain: "127.0.0.1", Port: 8000, Workers: 1, BasicAuthAndSecret: true}
	assert.Error(t, cfg.Validate())

	cfg.Secret = "deadbeef"
	cfg.BasicAuthUser = "u"
	cfg.BasicAuthPassword = "p"
	assert.NoError(t, cfg.Validate())
}

func TestConfig_SSLEnabled(t *testing.T) {
	cfg := &Config{Domain: "127.0.0.1", Port: 8000, Workers: 1}
	assert.False(t, cfg.SSLEnabled())

	cfg.SSLCertChain = "chain.pem"
	cfg.SSLPrivateKey = "key.pem"
	assert.True(t, cfg.SSLEnabled())
}

func TestConfig_WebhookByName(t *testing.T) {
	cfg := &Config{Webhooks: []Webhook{{Name: "a"}, {Name: "b"}}}

	wh, ok := cfg.WebhookByName("b")
	require.True(t, ok)
	assert.Equal(t, "b", wh.Name)

	_, ok = cfg.WebhookByName("missing")
	assert.False(t, ok)
}
