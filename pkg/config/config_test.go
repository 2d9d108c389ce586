package config

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "localhost", cfg.Server.Host)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "embedeverything", cfg.Embedding.Provider)
	require.Empty(t, cfg.VectorStore.Path, "default vector store is in-memory")
	require.True(t, cfg.CircuitBreaker.Enabled)
	require.InDelta(t, 0.6, cfg.CircuitBreaker.ReadyToTripRatio, 1e-9)
	require.Equal(t, 4, cfg.Workflow.MaxWorkers)
	require.Zero(t, cfg.Graph.CooccurrenceWindow, "default co-occurrence is same-chunk only")
}

func TestLoadEnvOverrides(t *testing.T) {
	resetViper(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("NEO4J_URI", "bolt://db:7687")
	t.Setenv("NEO4J_USER", "graph")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("SERVER_HOST", "0.0.0.0")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "sk-test", cfg.Embedding.APIKey)
	require.Equal(t, "sk-test", cfg.LLM.APIKey)
	require.Equal(t, "bolt://db:7687", cfg.Database.URI)
	require.Equal(t, "neo4j", cfg.Database.Driver, "setting NEO4J_URI enables the neo4j driver")
	require.Equal(t, "graph", cfg.Database.Username)
	require.Equal(t, "secret", cfg.Database.Password)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestNewLogger(t *testing.T) {
	resetViper(t)

	var buf bytes.Buffer
	cfg := &Config{Log: LogConfig{Level: "debug", Format: "json"}}
	log := cfg.NewLogger(&buf)
	require.True(t, log.Enabled(context.Background(), slog.LevelDebug))

	log.Debug("probe", "k", "v")
	require.Contains(t, buf.String(), `"k":"v"`)

	cfg = &Config{Log: LogConfig{Level: "warn", Format: "text"}}
	log = cfg.NewLogger(&buf)
	require.False(t, log.Enabled(context.Background(), slog.LevelInfo))
}
