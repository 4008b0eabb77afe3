package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/feedsync-go/internal/model"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestSetup_PlainConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	log, err := Setup(Config{Output: &buf, Level: slog.LevelInfo, AccountName: "alice"})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("Realtime connected", "post_id", "42")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO - [alice] Realtime connected")
	assert.Contains(t, out, "post_id=42")
	assert.NotContains(t, out, "\033[")
}

func TestSetup_WritesLogFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	log, err := Setup(Config{Output: &buf, Level: slog.LevelWarn, FileLevel: slog.LevelDebug, LogDir: dir})
	require.NoError(t, err)

	log.Debug("only in file")

	assert.Empty(t, buf.String())
	data, err := os.ReadFile(filepath.Join(dir, "feedsync.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "only in file")
}

func TestEvent_PrefixesEmojiAndNotifies(t *testing.T) {
	var buf bytes.Buffer
	log, err := Setup(Config{Output: &buf, Level: slog.LevelInfo})
	require.NoError(t, err)

	var gotEvent model.Event
	var gotMsg string
	log.SetNotifyFunc(func(_ context.Context, message string, event model.Event) {
		gotEvent = event
		gotMsg = message
	})

	log.Event(context.Background(), model.EventPostLiked, "Post liked", "post_id", "42")

	assert.Contains(t, buf.String(), "👍 Post liked")
	assert.Contains(t, buf.String(), "event=POST_LIKED")
	assert.Equal(t, model.EventPostLiked, gotEvent)
	assert.Contains(t, gotMsg, "Post liked")
}

func TestNamed_SharesNotifyFunc(t *testing.T) {
	var buf bytes.Buffer
	log, err := Setup(Config{Output: &buf, Level: slog.LevelInfo})
	require.NoError(t, err)

	child := log.Named("realtime")

	calls := 0
	log.SetNotifyFunc(func(context.Context, string, model.Event) { calls++ })
	child.Event(context.Background(), model.EventTest, "hello")

	assert.Equal(t, 1, calls)
	assert.Contains(t, buf.String(), "component=realtime")
}
