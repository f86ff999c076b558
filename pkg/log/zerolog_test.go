package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewZerologAdapterWithLogger(zerolog.New(&buf))

	adapter.Info("drain finished",
		String("trigger", "manual"),
		Int("succeeded", 2),
		Bool("online", true),
		Duration("took", 1500*time.Millisecond),
		Strings("ids", []string{"a", "b"}),
		Err(errors.New("boom")),
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "drain finished", entry["message"])
	assert.Equal(t, "manual", entry["trigger"])
	assert.EqualValues(t, 2, entry["succeeded"])
	assert.Equal(t, true, entry["online"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, []any{"a", "b"}, entry["ids"])
}

func TestZerologAdapter_With(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewZerologAdapterWithLogger(zerolog.New(&buf)).With("sync")

	adapter.Warn("retry armed")

	assert.Contains(t, buf.String(), `"component":"sync"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestZerologAdapter_DisabledLevel(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewZerologAdapterWithLogger(zerolog.New(&buf).Level(zerolog.WarnLevel))

	adapter.Debug("hidden", String("k", "v"))
	adapter.Info("hidden")

	assert.Empty(t, buf.String())
}

func TestNewZerolog(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		logger, closer, err := NewZerolog(Options{})
		require.NoError(t, err)
		assert.Nil(t, closer)
		assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	})

	t.Run("json stdout debug", func(t *testing.T) {
		logger, closer, err := NewZerolog(Options{Level: "debug", Format: "json", Output: "stdout"})
		require.NoError(t, err)
		assert.Nil(t, closer)
		assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fieldsync.log")
		logger, closer, err := NewZerolog(Options{Format: "json", Output: "file", FilePath: path})
		require.NoError(t, err)
		require.NotNil(t, closer)

		logger.Info().Msg("hello")
		require.NoError(t, closer.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "hello")
	})

	t.Run("file without path", func(t *testing.T) {
		_, _, err := NewZerolog(Options{Output: "file"})
		assert.Error(t, err)
	})

	t.Run("bad level", func(t *testing.T) {
		_, _, err := NewZerolog(Options{Level: "loud"})
		assert.Error(t, err)
	})

	t.Run("bad format", func(t *testing.T) {
		_, _, err := NewZerolog(Options{Format: "xml"})
		assert.Error(t, err)
	})
}
