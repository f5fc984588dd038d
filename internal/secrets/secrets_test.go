package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarwindow/pvpoll/internal/errors"
)

func TestExpandString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		env     map[string]string
		want    string
		wantErr bool
	}{
		{name: "empty", input: "", want: ""},
		{name: "literal", input: "abc123", want: "abc123"},
		{name: "variable", input: "${PVPOLL_TEST_KEY}", env: map[string]string{"PVPOLL_TEST_KEY": "k-1"}, want: "k-1"},
		{name: "embedded", input: "tcp://${PVPOLL_TEST_HOST}:1883", env: map[string]string{"PVPOLL_TEST_HOST": "broker"}, want: "tcp://broker:1883"},
		{name: "default used", input: "${PVPOLL_TEST_UNSET:-fallback}", want: "fallback"},
		{name: "empty default", input: "${PVPOLL_TEST_UNSET:-}", want: ""},
		{name: "default ignored", input: "${PVPOLL_TEST_KEY:-fallback}", env: map[string]string{"PVPOLL_TEST_KEY": "set"}, want: "set"},
		{name: "missing", input: "${PVPOLL_TEST_UNSET}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			got, err := ExpandString(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
				assert.Contains(t, err.Error(), "PVPOLL_TEST_UNSET")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func writeSecret(t *testing.T, content string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	return path
}

func TestReadFile(t *testing.T) {
	path := writeSecret(t, "s3cr3t\n", 0o600)
	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", got)

	permissive := writeSecret(t, " keep spaces \r\n", 0o644)
	got, err = ReadFile(permissive)
	require.NoError(t, err, "permissive files are accepted")
	assert.Equal(t, " keep spaces ", got)
}

func TestReadFileErrors(t *testing.T) {
	dir := t.TempDir()
	large := filepath.Join(dir, "large")
	require.NoError(t, os.WriteFile(large, make([]byte, maxSecretFileSize+1), 0o600))

	for name, path := range map[string]string{
		"missing":   filepath.Join(dir, "nope"),
		"directory": dir,
		"empty":     writeSecret(t, "\n", 0o600),
		"too large": large,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadFile(path)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
		})
	}
}

func TestResolve(t *testing.T) {
	path := writeSecret(t, "from-file\n", 0o600)
	got, err := Resolve(FilePrefix + path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", got)

	t.Setenv("PVPOLL_TEST_DSN", "https://key@sentry.example/1")
	got, err = Resolve("${PVPOLL_TEST_DSN}")
	require.NoError(t, err)
	assert.Equal(t, "https://key@sentry.example/1", got)

	got, err = Resolve("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", got)
}
