package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_MissingConfig(t *testing.T) {
	var out bytes.Buffer

	err := run([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load configuration")
	assert.Contains(t, out.String(), "Failed to load configuration")
}

func TestRun_FailureIsWrittenToLogFile(t *testing.T) {
	dir := t.TempDir()
	deviceFile := filepath.Join(dir, "device.json")
	logFile := filepath.Join(dir, "agent.log")
	configFile := filepath.Join(dir, "config.yaml")

	require.NoError(t, os.WriteFile(deviceFile, []byte("{not json"), 0o600))
	require.NoError(t, os.WriteFile(configFile, []byte(fmt.Sprintf(`
identity:
  device_file: %q
logging:
  file: %q
geocoding:
  maps_api_key: "test-key"
reporting:
  base_url: "http://127.0.0.1:9560"
`, deviceFile, logFile)), 0o600))

	err := run([]string{"-config", configFile}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load device information")

	logged, readErr := os.ReadFile(logFile)
	require.NoError(t, readErr)
	assert.Contains(t, string(logged), "Failed to load device information")
}

func TestRun_BadFlag(t *testing.T) {
	assert.Error(t, run([]string{"-unknown"}, &bytes.Buffer{}))
}
