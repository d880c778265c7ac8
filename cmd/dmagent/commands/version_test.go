// ABOUTME: Tests for the build stamp and the version command output forms
// ABOUTME: Restores the package-level stamp after each case
package commands

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withStamp(t *testing.T, version, commit, date string) {
	t.Helper()
	saved := build
	t.Cleanup(func() { build = saved })
	SetVersion(version, commit, date)
}

func runVersion(t *testing.T, args ...string) string {
	t.Helper()
	cmd := NewVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestVersion_OneLine(t *testing.T) {
	withStamp(t, "1.2.3", "abc123", "2026-01-31")

	out := runVersion(t)
	assert.True(t, strings.HasPrefix(out, "dmagent 1.2.3 (abc123, built 2026-01-31, go"), out)
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestVersion_JSON(t *testing.T) {
	withStamp(t, "2.0.0-beta", "deadbeef", "2026-06-15T10:30:00Z")

	var got BuildStamp
	require.NoError(t, json.Unmarshal([]byte(runVersion(t, "--json")), &got))
	assert.Equal(t, "2.0.0-beta", got.Version)
	assert.Equal(t, "deadbeef", got.Commit)
	assert.Equal(t, "2026-06-15T10:30:00Z", got.Date)
	assert.NotEmpty(t, got.Go)
}

func TestVersion_RejectsArgs(t *testing.T) {
	cmd := NewVersionCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"extra"})
	assert.Error(t, cmd.Execute())
}
