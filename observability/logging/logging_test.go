package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo))
	logger.Debug("hidden")
	logger.Info("memory created", slog.String("key", "notes"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "memory created", line["message"])
	require.Equal(t, "notes", line["key"])
	require.Contains(t, line, "timestamp")
	require.NotContains(t, line, "msg")
}

func TestSetupWritesToFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "node.log")
	logger, closer := Setup("agentmemd", "test", Options{Level: slog.LevelDebug, File: path, MaxSizeMB: 1})
	logger.Debug("booted")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &line))
	require.Equal(t, "agentmemd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, "DEBUG", line["severity"])
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel(" DEBUG "))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("dsn", "postgres://user:pw@db/events").Value.String())
	require.Equal(t, "boom", MaskField("error", "boom").Value.String())
	require.Equal(t, "", MaskField("dsn", "").Value.String())
	require.Contains(t, RedactionAllowlist(), "service")
	require.NotContains(t, RedactionAllowlist(), "dsn")
}

func TestMaskDSN(t *testing.T) {
	require.Equal(t, "postgres://indexer:xxxxx@db:5432/events?sslmode=disable",
		MaskDSN("postgres://indexer:s3cret@db:5432/events?sslmode=disable"))
	require.Equal(t, "postgres://db/events?password=xxxxx",
		MaskDSN("postgres://db/events?password=s3cret"))
	require.Equal(t, "host=db user=indexer password=[REDACTED] dbname=events",
		MaskDSN("host=db user=indexer password=s3cret dbname=events"))
	require.Equal(t, "/var/lib/memchain/events.db", MaskDSN("/var/lib/memchain/events.db"))
}
