package version

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	originalVersion, originalCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = originalVersion, originalCommit })

	Version = "0.3.0"
	GitCommit = "4f2a9c1"

	info := Get()
	assert.Equal(t, "0.3.0", info.Version)
	assert.Equal(t, "4f2a9c1", info.GitCommit)
	assert.Equal(t, BuildTime, info.BuildTime)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestInfo(t *testing.T) {
	info := Info{
		Version:   "0.3.0",
		GitCommit: "4f2a9c1",
		BuildTime: "2026-10-17T09:34:29Z",
		GoVersion: "go1.25.1",
	}

	t.Run("string", func(t *testing.T) {
		assert.Equal(t,
			"Version: 0.3.0, GitCommit: 4f2a9c1, BuildTime: 2026-10-17T09:34:29Z, GoVersion: go1.25.1",
			info.String())
	})

	t.Run("json", func(t *testing.T) {
		out, err := info.JSON()
		require.NoError(t, err)

		expected := `{
  "version": "0.3.0",
  "gitCommit": "4f2a9c1",
  "buildTime": "2026-10-17T09:34:29Z",
  "goVersion": "go1.25.1"
}`
		assert.Equal(t, expected, out)

		var parsed Info
		require.NoError(t, json.Unmarshal([]byte(out), &parsed))
		assert.Equal(t, info, parsed)
	})
}
