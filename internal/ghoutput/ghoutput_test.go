package ghoutput

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_NoopOutsideActions(t *testing.T) {
	t.Setenv(outputEnv, "")
	require.NoError(t, Write(map[string]string{"replied": "1"}))
}

func TestWrite_AppendsSortedOutputs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output")
	require.NoError(t, os.WriteFile(path, []byte("existing=1\n"), 0o600))
	t.Setenv(outputEnv, path)

	require.NoError(t, Write(map[string]string{
		"replied": "2",
		"failed":  "0",
		" ":       "ignored",
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "existing=1\nfailed=0\nreplied=2\n", string(data))
}

func TestWriteTo_MultilineUsesDelimiter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output")
	require.NoError(t, WriteTo(path, map[string]string{"report": "line one\r\nline two\n"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	re := regexp.MustCompile(`^report<<(RRBOT_[0-9a-f]{32})\nline one\nline two\n(RRBOT_[0-9a-f]{32})\n$`)
	m := re.FindStringSubmatch(string(data))
	require.NotNil(t, m, string(data))
	assert.Equal(t, m[1], m[2])
}

func TestAppendSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.md")
	t.Setenv(summaryEnv, path)

	require.NoError(t, AppendSummary("## rrbot"))
	require.NoError(t, AppendSummary(""))
	require.NoError(t, AppendSummary("replied: 1\n"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "## rrbot\nreplied: 1\n", string(data))
}
