package log

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/lidarml/pkg/errors"
)

// ZerologLogger adapts a zerolog.Logger to Logger.
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger wraps zl.
func NewZerologLogger(zl zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{zl: zl}
}

// NewConsoleLogger returns a human-friendly zerolog logger writing to w.
func NewConsoleLogger(w io.Writer, level Level) *ZerologLogger {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	zl := zerolog.New(cw).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &ZerologLogger{zl: zl}
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (z *ZerologLogger) Debug(msg string, fields ...any) { z.zl.Debug().Fields(fields).Msg(msg) }
func (z *ZerologLogger) Info(msg string, fields ...any)  { z.zl.Info().Fields(fields).Msg(msg) }
func (z *ZerologLogger) Warn(msg string, fields ...any)  { z.zl.Warn().Fields(fields).Msg(msg) }

func (z *ZerologLogger) Error(msg string, fields ...any) {
	err, rest := splitError(fields)
	ev := z.zl.Error()
	if err != nil {
		ev = ev.Err(err)
		if m, ok := structured(err); ok {
			ev = ev.Object("error_detail", m)
		}
	}
	ev.Fields(rest).Msg(msg)
}

func (z *ZerologLogger) With(fields ...any) Logger {
	return &ZerologLogger{zl: z.zl.With().Fields(fields).Logger()}
}

func (z *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= z.zl.GetLevel()
}

// InstallWarnings routes errors.Warn through z at warn level.
func (z *ZerologLogger) InstallWarnings() {
	errors.SetZerologWarnFunc(func(w error) {
		ev := z.zl.Warn()
		if m, ok := structured(w); ok {
			ev = ev.EmbedObject(m)
		}
		ev.Msg(w.Error())
	})
}

func structured(err error) (zerolog.LogObjectMarshaler, bool) {
	var m zerolog.LogObjectMarshaler
	if errors.As(err, &m) {
		return m, true
	}
	return nil, false
}
