package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacesprotocol/subspacer/config"
)

func TestTextLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewTextLogger(&buf, slog.LevelInfo)

	log.Info("committed", Space("example"), Seq(3))
	out := buf.String()
	require.Contains(t, out, "committed")
	require.Contains(t, out, "space=example")
	require.Contains(t, out, "seq=3")
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, slog.LevelInfo)

	log.Info("proving", Backend("local"), Root([]byte{0xab, 0xcd}))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "proving", entry["msg"])
	require.Equal(t, "local", entry["backend"])
	require.Equal(t, "abcd", entry["root"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewTextLogger(&buf, slog.LevelWarn)

	log.Debug("hidden")
	log.Info("hidden too")
	require.Empty(t, buf.String())

	log.Warn("shown")
	require.Contains(t, buf.String(), "shown")
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := NewTextLogger(&buf, slog.LevelInfo).WithComponent("engine")

	log.Info("applied")
	require.Contains(t, buf.String(), "component=engine")
}

func TestNopLogger(t *testing.T) {
	log := NewNopLogger()
	// Must not panic and must not emit anywhere.
	log.Info("ignored", Err(nil))
}

func TestFromConfig(t *testing.T) {
	log, err := FromConfig(config.LoggingConfig{Level: "debug", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	require.NotNil(t, log)

	_, err = FromConfig(config.LoggingConfig{Level: "loud", Format: "text"})
	require.Error(t, err)

	_, err = FromConfig(config.LoggingConfig{Level: "info", Format: "xml"})
	require.Error(t, err)
}
