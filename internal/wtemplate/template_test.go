package wtemplate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Substitutes(t *testing.T) {
	out, err := Render("deploy.sh --branch {{branch}} --env {{env}}", map[string]string{
		"branch": "main",
		"env":    "prod",
	})
	require.NoError(t, err)
	assert.Equal(t, "deploy.sh --branch main --env prod", out)
}

func TestRender_MissingParamIsError(t *testing.T) {
	_, err := Render("deploy.sh --branch {{branch}}", map[string]string{})
	assert.Error(t, err)
}

func TestRender_NoPlaceholders(t *testing.T) {
	out, err := Render("echo hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "echo hello", out)
}

func TestPlaceholders_FirstSeenOrderDeduped(t *testing.T) {
	names := Placeholders("{{branch}} {{env}} {{branch}}")
	assert.Equal(t, []string{"branch", "env"}, names)
}
