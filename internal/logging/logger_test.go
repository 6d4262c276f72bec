package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlogLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewText(&buf, slog.LevelInfo)

	log.Debug("hidden", "k", 1)
	log.Info("shown", "source", "mirror")
	log.With("platform", "Linux").Warn("careful")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "source=mirror")
	assert.Contains(t, out, "platform=Linux")
	assert.Contains(t, out, "level=WARN")
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	l := NewText(&bytes.Buffer{}, slog.LevelDebug)
	assert.Same(t, Logger(l), OrNop(l))

	// Must not panic.
	Nop().Error("ignored", "err", "x")
}

type recorder struct {
	entries [][]interface{}
}

func (r *recorder) Debug(msg string, kv ...interface{}) { r.entries = append(r.entries, kv) }
func (r *recorder) Info(msg string, kv ...interface{})  { r.entries = append(r.entries, kv) }
func (r *recorder) Warn(msg string, kv ...interface{})  { r.entries = append(r.entries, kv) }
func (r *recorder) Error(msg string, kv ...interface{}) { r.entries = append(r.entries, kv) }

func TestWith(t *testing.T) {
	rec := &recorder{}
	l := With(rec, "run", "42")

	l.Info("one", "k", "v")
	l.Error("two")

	assert.Equal(t, [][]interface{}{{"run", "42", "k", "v"}, {"run", "42"}}, rec.entries)

	var buf bytes.Buffer
	With(NewText(&buf, slog.LevelInfo), "run", "7").Info("hello")
	assert.Contains(t, buf.String(), "run=7")

	With(nil, "a", 1).Info("ignored")
}
