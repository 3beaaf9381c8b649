package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermarkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".last_history_load")
	b := &Backfill{watermarkPath: path}

	// Missing file means never run
	assert.Equal(t, "", b.readWatermark())

	today := time.Now().UTC().Format("2006-01-02")
	require.NoError(t, b.writeWatermark(today))
	assert.Equal(t, today, b.readWatermark())
}

func TestWatermarkTrimsWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".last_history_load")
	require.NoError(t, os.WriteFile(path, []byte("2026-08-26\n\n"), 0644))

	b := &Backfill{watermarkPath: path}
	assert.Equal(t, "2026-08-26", b.readWatermark())
}

func TestWatermarkStaleDateDoesNotMatchToday(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".last_history_load")
	b := &Backfill{watermarkPath: path}
	require.NoError(t, b.writeWatermark("2020-01-01"))

	today := time.Now().UTC().Format("2006-01-02")
	assert.NotEqual(t, today, b.readWatermark())
}
