package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestConfig writes a minimal config file rooted in a temp dir and
// returns its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	body := fmt.Sprintf(`{
  "data_dir": %q,
  "storage": {"base_dir": %q},
  "logging": {"level": "error", "file": %q}
}`, dir, filepath.Join(dir, "projects"), filepath.Join(dir, "recall.log"))

	path := filepath.Join(dir, "recall.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	t.Cleanup(func() {
		cfgFile = ""
		logLevel = ""
	})
	return path
}

func TestStatusCommand(t *testing.T) {
	t.Run("command exists", func(t *testing.T) {
		found := false
		for _, c := range GetRootCmd().Commands() {
			if c.Name() == "status" {
				found = true
				break
			}
		}
		assert.True(t, found, "status command should exist")
	})

	t.Run("empty store", func(t *testing.T) {
		cfgPath := writeTestConfig(t)

		cmd := GetRootCmd()
		cmd.SetArgs([]string{"status", "--config", cfgPath})

		output := &bytes.Buffer{}
		cmd.SetOut(output)

		err := cmd.Execute()
		require.NoError(t, err)

		text := output.String()
		assert.Contains(t, text, "Base dir:")
		assert.Contains(t, text, "Memories: 0")
		assert.Contains(t, text, "Tasks:    0")
	})
}

func TestCheckCommandEmptyStore(t *testing.T) {
	cfgPath := writeTestConfig(t)

	cmd := GetRootCmd()
	cmd.SetArgs([]string{"check", "--config", cfgPath})

	output := &bytes.Buffer{}
	cmd.SetOut(output)

	err := cmd.Execute()
	require.NoError(t, err)

	assert.Contains(t, output.String(), "Evaluated: 0")
}

func TestDedupeCommandEmptyStore(t *testing.T) {
	cfgPath := writeTestConfig(t)

	cmd := GetRootCmd()
	cmd.SetArgs([]string{"dedupe", "--config", cfgPath, "--dry-run"})

	output := &bytes.Buffer{}
	cmd.SetOut(output)

	err := cmd.Execute()
	require.NoError(t, err)

	assert.Contains(t, output.String(), "No duplicates found.")
}
