package logger

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"strings"
)

// NewSlogHandler bridges slog records into l. A nil logger yields nil.
func NewSlogHandler(l *Logger) slog.Handler {
	if l == nil {
		return nil
	}
	return &slogBridge{target: l}
}

// StdLogger returns a *log.Logger whose output lands in l at the given
// level. Used for http.Server.ErrorLog.
func StdLogger(l *Logger, level Level) *log.Logger {
	if l == nil {
		l = Global()
	}
	return slog.NewLogLogger(NewSlogHandler(l), toSlogLevel(level))
}

type slogBridge struct {
	target *Logger
	group  string
	attrs  []slog.Attr
}

func (b *slogBridge) Enabled(_ context.Context, level slog.Level) bool {
	return fromSlogLevel(level) >= b.target.GetLevel()
}

func (b *slogBridge) Handle(_ context.Context, record slog.Record) error {
	var sb strings.Builder
	sb.WriteString(record.Message)

	for _, a := range b.attrs {
		appendAttr(&sb, b.group, a)
	}
	record.Attrs(func(a slog.Attr) bool {
		appendAttr(&sb, b.group, a)
		return true
	})

	msg := strings.TrimLeft(sb.String(), " ")
	switch fromSlogLevel(record.Level) {
	case LevelError:
		b.target.Error("%s", msg)
	case LevelWarn:
		b.target.Warn("%s", msg)
	case LevelInfo:
		b.target.Info("%s", msg)
	default:
		b.target.Debug("%s", msg)
	}
	return nil
}

func (b *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *b
	next.attrs = append(append([]slog.Attr(nil), b.attrs...), attrs...)
	return &next
}

func (b *slogBridge) WithGroup(name string) slog.Handler {
	if name == "" {
		return b
	}
	next := *b
	next.group = joinKey(b.group, name)
	next.attrs = append([]slog.Attr(nil), b.attrs...)
	return &next
}

func appendAttr(sb *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, nested := range a.Value.Group() {
			appendAttr(sb, joinKey(prefix, a.Key), nested)
		}
		return
	}
	key := a.Key
	if key == "" {
		key = "attr"
	}
	fmt.Fprintf(sb, " %s=%v", joinKey(prefix, key), a.Value)
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	if key == "" {
		return prefix
	}
	return prefix + "." + key
}

func fromSlogLevel(level slog.Level) Level {
	switch {
	case level >= slog.LevelError:
		return LevelError
	case level >= slog.LevelWarn:
		return LevelWarn
	case level >= slog.LevelInfo:
		return LevelInfo
	default:
		return LevelDebug
	}
}

func toSlogLevel(level Level) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError, LevelNone:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
