package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "models", cfg.Layout.BasePath)
	assert.Equal(t, "tensorflow_model_server", cfg.Serving.Binary)
	assert.Equal(t, 8500, cfg.Serving.GRPCPort)
	assert.Equal(t, 8501, cfg.Serving.RESTPort)
	assert.True(t, cfg.Serving.EnableBatching)
	assert.Equal(t, "head/predictions/class_ids", cfg.Tools.OutputNode)
	assert.Equal(t, DefaultTransforms, cfg.Tools.Transforms)
	assert.Equal(t, []string{"python3", "train_and_export.py"}, cfg.Tools.ExportCommand)
	assert.Equal(t, "head/predictions/probabilities:0", cfg.Tools.OutputTensors["scores"])
	assert.Equal(t, 100, cfg.Benchmark.Requests)
	assert.Equal(t, time.Minute, cfg.Serving.ReadyTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVING_REST_PORT", "9501")
	t.Setenv("TOOLS_TRANSFORMS", "strip_unused_nodes; fold_constants(ignore_errors=true)")
	t.Setenv("SERVING_READY_TIMEOUT", "90s")
	t.Setenv("DATABASE_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9501, cfg.Serving.RESTPort)
	assert.Equal(t, []string{"strip_unused_nodes", "fold_constants(ignore_errors=true)"}, cfg.Tools.Transforms)
	assert.Equal(t, 90*time.Second, cfg.Serving.ReadyTimeout)
	assert.True(t, cfg.Database.Enabled)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("SERVING_READY_TIMEOUT", "abc")
	t.Setenv("TOOLS_TIMEOUT", "5 minutes")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVING_READY_TIMEOUT")
	assert.Contains(t, err.Error(), "TOOLS_TIMEOUT")
}

func TestLoad_InvalidTensorMap(t *testing.T) {
	t.Setenv("TOOLS_OUTPUT_TENSORS", "scores")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "optimizer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("serving_model_name: fashion\nbenchmark_requests: 7\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fashion", cfg.Serving.ModelName)
	assert.Equal(t, 7, cfg.Benchmark.Requests)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5432, Name: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/n?sslmode=disable", d.DSN())
}
