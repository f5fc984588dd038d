package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetDefaults(t *testing.T) {
	info := Get()
	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, "unknown", info.BuildDate)
	assert.NotEmpty(t, info.Commit)
	assert.Equal(t, "pvpoll@dev", info.Release())
}

func TestGetLinkedValues(t *testing.T) {
	saved := [3]string{version, buildDate, commit}
	t.Cleanup(func() { version, buildDate, commit = saved[0], saved[1], saved[2] })
	version, buildDate, commit = "v1.2.0", "2024-06-21", "abc123"

	info := Get()
	assert.Equal(t, Info{Version: "v1.2.0", BuildDate: "2024-06-21", Commit: "abc123"}, info)
	assert.Equal(t, "v1.2.0 (commit abc123, built 2024-06-21)", info.String())
}

func TestShortRevision(t *testing.T) {
	assert.Equal(t, "0123456789ab", shortRevision("0123456789abcdef0123"))
	assert.Equal(t, "abc", shortRevision("abc"))
}
