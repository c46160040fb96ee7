package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaisest/fakefurbot/internal/testutil"
)

func TestSecretsCmd_HasSubcommands(t *testing.T) {
	expected := []string{"set", "list", "delete", "audit", "rotate"}
	registered := make(map[string]bool)
	for _, cmd := range secretsCmd.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range expected {
		assert.True(t, registered[name], "secrets subcommand %q should be registered", name)
	}
}

func TestSecretsSetCmd_RequiresTwoArgs(t *testing.T) {
	assert.Error(t, secretsSetCmd.Args(secretsSetCmd, []string{"one"}))
	assert.NoError(t, secretsSetCmd.Args(secretsSetCmd, []string{"name", "value"}))
}

func TestSecretsRotateCmd_RequiresOneArg(t *testing.T) {
	assert.Error(t, secretsRotateCmd.Args(secretsRotateCmd, []string{}))
	assert.NoError(t, secretsRotateCmd.Args(secretsRotateCmd, []string{"key-name"}))
}

func TestOpenSecretsStore_DefaultKey(t *testing.T) {
	t.Setenv("FURBOT_DATA_DIR", t.TempDir())
	t.Setenv("FURBOT_SECRETS_KEY", "")
	store, err := openSecretsStore()
	require.NoError(t, err)
	defer store.Close()
}

func TestOpenSecretsStore_InvalidKeyLength(t *testing.T) {
	t.Setenv("FURBOT_DATA_DIR", t.TempDir())
	t.Setenv("FURBOT_SECRETS_KEY", "too-short")
	_, err := openSecretsStore()
	require.Error(t, err)
}

func TestSecretsLifecycle(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FURBOT_DATA_DIR", dir)
	t.Setenv("FURBOT_SECRETS_KEY", testutil.TestEncryptionKey)

	out, err := execute(t, "secrets", "set", "e621_api_key", "s3cret")
	require.NoError(t, err)
	assert.Contains(t, out, "Secret 'e621_api_key' stored")
	assert.NotContains(t, out, "not a name furbot reads")
	assert.FileExists(t, filepath.Join(dir, "secrets.db"))

	out, err = execute(t, "secrets", "set", "openai_key", "x")
	require.NoError(t, err)
	assert.Contains(t, out, "not a name furbot reads")

	out, err = execute(t, "secrets", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "e621_api_key")
	assert.Contains(t, out, "openai_key")
	assert.NotContains(t, out, "s3cret")

	_, err = execute(t, "secrets", "rotate", "e621_api_key")
	require.NoError(t, err)

	out, err = execute(t, "secrets", "delete", "openai_key")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted")

	_, err = execute(t, "secrets", "delete", "openai_key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	out, err = execute(t, "secrets", "audit")
	require.NoError(t, err)
	assert.Contains(t, out, "No secret access records yet.")
}
