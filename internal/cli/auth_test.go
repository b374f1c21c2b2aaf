package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadCredentials(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	require.NoError(t, saveCredential("https://api.example.com/api/v1", "tok-12345678"))

	creds, err := loadCredentials()
	require.NoError(t, err)
	require.Len(t, creds.Backends, 1)
	assert.Equal(t, "tok-12345678", creds.Backends["https://api.example.com/api/v1"].AccessToken)
}

func TestSaveCredentialOverwrites(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	require.NoError(t, saveCredential("https://api.example.com", "old-token-123"))
	require.NoError(t, saveCredential("https://api.example.com", "new-token-456"))

	assert.Equal(t, "new-token-456", getCredential("https://api.example.com"))
}

func TestCredentialsFilePermissions(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	require.NoError(t, saveCredential("https://api.example.com", "secret"))

	info, err := os.Stat(credentialsFilePath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestGetCredentialMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	assert.Empty(t, getCredential("https://api.example.com"))

	require.NoError(t, saveCredential("https://other.example.com", "tok"))
	assert.Empty(t, getCredential("https://api.example.com"))
}

func TestCredentialsMultipleBackends(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	require.NoError(t, saveCredential("https://api.tenderly.co/api/v1", "prod-token-1234"))
	require.NoError(t, saveCredential("http://localhost:9000/api/v1", "dev-token-5678"))

	assert.Equal(t, "prod-token-1234", getCredential("https://api.tenderly.co/api/v1"))
	assert.Equal(t, "dev-token-5678", getCredential("http://localhost:9000/api/v1"))
}

func TestCredentialsDirCreated(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, saveCredential("https://api.example.com", "tok"))

	info, err := os.Stat(filepath.Join(home, ".remixbridge"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"short", "abc", "****"},
		{"exactly eight", "12345678", "****"},
		{"long", "abcdefghijklmnop", "abcd...mnop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, maskToken(tt.token))
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLogLevel("debug").String())
	assert.Equal(t, "INFO", parseLogLevel("info").String())
	assert.Equal(t, "WARN", parseLogLevel("warn").String())
	assert.Equal(t, "ERROR", parseLogLevel("error").String())
	assert.Equal(t, "INFO", parseLogLevel("bogus").String())
}
