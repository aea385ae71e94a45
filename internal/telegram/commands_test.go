package telegram

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/jejecipher/internal/cipher"
	"github.com/yourusername/jejecipher/internal/db"
	"github.com/yourusername/jejecipher/internal/history"
	"github.com/yourusername/jejecipher/internal/transform"
)

func newHandler(t *testing.T) *CommandHandler {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "telegram_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())

	store := history.New(database)
	svc := transform.New(zap.NewNop(), store, nil, nil, transform.Options{MaxInputBytes: 64})
	return NewCommandHandler(svc, store)
}

func TestRespond_EncodeDecode(t *testing.T) {
	ctx := context.Background()
	h := newHandler(t)

	r := h.Respond(ctx, "encode", "cat")
	assert.Equal(t, "7~4₵(C)", r.Text)
	assert.NotEmpty(t, r.Ref)

	back := h.HandleCallback(ctx, reversePrefix+r.Ref)
	assert.Equal(t, "CAT", back.Text)
	assert.NotEmpty(t, back.Ref)

	r = h.Respond(ctx, "decode", "~0()(C)")
	assert.Equal(t, "NO", r.Text)

	r = h.Respond(ctx, "encode", "   ")
	assert.Equal(t, "Usage: /encode <text>", r.Text)
	assert.Empty(t, r.Ref)

	r = h.Respond(ctx, "encode", strings.Repeat("a", 65))
	assert.Equal(t, "Text is too long.", r.Text)
}

func TestRespond_HistoryAndStats(t *testing.T) {
	ctx := context.Background()
	h := newHandler(t)

	assert.Equal(t, "No transforms yet.", h.Respond(ctx, "history", "").Text)

	h.Respond(ctx, "encode", "hello")
	h.Respond(ctx, "decode", "7~4₵(C)")

	hist := h.Respond(ctx, "history", "").Text
	assert.Contains(t, hist, "Last 2 of 2")
	assert.Contains(t, hist, "[encode] hello")
	assert.Contains(t, hist, "→ CAT")

	stats := h.Respond(ctx, "stats", "").Text
	assert.Contains(t, stats, "Transforms: 2")
	assert.Contains(t, stats, "Encoded: 1")
	assert.Contains(t, stats, "Today: 2")
}

func TestRespond_Misc(t *testing.T) {
	ctx := context.Background()
	h := newHandler(t)

	assert.Equal(t, helpText, h.Respond(ctx, "help", "").Text)
	assert.Contains(t, h.Respond(ctx, "nope", "").Text, "Unknown command")
	assert.Equal(t, "Unknown action.", h.HandleCallback(ctx, "pause_all").Text)
	assert.Contains(t, h.HandleCallback(ctx, reversePrefix+"missing").Text, "no longer")
}

func TestFormatLegend(t *testing.T) {
	out := formatLegend(cipher.Legend())
	assert.Contains(t, out, "A 4")
	assert.Contains(t, out, "H [-]")
	assert.Contains(t, out, "Z 2\n")
	assert.Contains(t, out, "(C) consonant start")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "ß₵…", truncate("ß₵ÜЯ", 3))
}
