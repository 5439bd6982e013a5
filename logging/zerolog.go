package logging

import (
	"io"
	"time"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// ZerologLogger is the default production Logger, backed by logiface's
// generic event/field model with github.com/rs/zerolog as the sink, wired
// through the izerolog binding. It replaces the hand-rolled pretty/JSON
// formatter a naive port of the core would write, in favor of the
// structured-logging stack already used elsewhere in this codebase's
// lineage.
type ZerologLogger struct {
	min    Level
	logger *logiface.Logger[*izerolog.Event]
}

// NewZerologLogger builds a ZerologLogger writing to w at or above min.
func NewZerologLogger(min Level, w io.Writer) *ZerologLogger {
	zl := zerolog.New(w).With().Timestamp().Logger()
	return &ZerologLogger{
		min:    min,
		logger: izerolog.L.New(izerolog.L.WithZerolog(zl), izerolog.L.WithLevel(toLogifaceLevel(min))),
	}
}

// Enabled implements Logger.
func (z *ZerologLogger) Enabled(level Level) bool {
	return level >= z.min
}

// Log implements Logger.
func (z *ZerologLogger) Log(entry Entry) {
	if !z.Enabled(entry.Level) {
		return
	}

	var b *logiface.Builder[*izerolog.Event]
	switch entry.Level {
	case LevelError:
		b = z.logger.Err()
	case LevelWarn:
		b = z.logger.Warning()
	case LevelDebug:
		b = z.logger.Debug()
	default:
		b = z.logger.Info()
	}

	if entry.Category != "" {
		b = b.Str("category", entry.Category)
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	if !entry.Timestamp.IsZero() {
		b = b.Dur("since_event_ns", time.Since(entry.Timestamp))
	}
	for k, v := range entry.Fields {
		b = b.Interface(k, v)
	}
	b.Log(entry.Message)
}

func toLogifaceLevel(l Level) logiface.Level {
	switch l {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}
