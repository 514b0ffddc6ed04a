package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFrom(t *testing.T, dir string) *Config {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFrom(t, t.TempDir())

	assert.Equal(t, "https://serverless.roboflow.com", cfg.Roboflow.APIURL)
	assert.InDelta(t, 0.4, cfg.Policy.MinConfidence, 1e-9)
	assert.InDelta(t, 0.02, cfg.Policy.Margin, 1e-9)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, int64(16<<20), cfg.Server.MaxUploadBytes)
	assert.False(t, cfg.Server.Debug)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	doc := `
roboflow:
  api_key: rf-test-key
  workspace: farm-ws
  rice_workflow_id: rice-v2
  wheat_workflow_id: wheat-v1
policy:
  min_confidence: 0.55
  margin: 0.05
server:
  port: 8080
  debug: true
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(doc), 0o644))

	cfg := loadFrom(t, dir)

	assert.Equal(t, "rf-test-key", cfg.Roboflow.APIKey)
	assert.Equal(t, "farm-ws", cfg.Roboflow.Workspace)
	assert.Equal(t, "rice-v2", cfg.Roboflow.RiceWorkflowID)
	assert.Equal(t, "wheat-v1", cfg.Roboflow.WheatWorkflowID)
	assert.InDelta(t, 0.55, cfg.Policy.MinConfidence, 1e-9)
	assert.InDelta(t, 0.05, cfg.Policy.Margin, 1e-9)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Empty(t, cfg.Validate())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CROPSCOUT_ROBOFLOW_API_KEY", "rf-env-key")
	t.Setenv("CROPSCOUT_POLICY_MIN_CONFIDENCE", "0.7")

	cfg := loadFrom(t, t.TempDir())

	assert.Equal(t, "rf-env-key", cfg.Roboflow.APIKey)
	assert.InDelta(t, 0.7, cfg.Policy.MinConfidence, 1e-9)
}

func TestValidate_Missing(t *testing.T) {
	cfg := &Config{}
	missing := cfg.Validate()

	assert.Contains(t, missing, "roboflow.api_key")
	assert.Contains(t, missing, "roboflow.workspace")
	assert.Contains(t, missing, "roboflow.rice_workflow_id")
	assert.Contains(t, missing, "roboflow.wheat_workflow_id")
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "chatty", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
