package log

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	taxierrors "github.com/YuminosukeSato/taxitip/pkg/errors"
)

// SetupLogger installs the process-wide zerolog provider writing to w at the
// given level ("debug", "info", "warn", "error"). When console is true records
// are rendered human-readable instead of JSON lines. Warnings raised through
// pkg/errors.Warn are routed to the same output.
func SetupLogger(loglevel string, w io.Writer, console bool) error {
	level, err := ToLogLevel(loglevel)
	if err != nil {
		return err
	}
	if w == nil {
		w = os.Stderr
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	p := NewZerologProvider(w)
	p.SetLevel(level)
	SetProvider(p)

	warnings := p.base.With().Str(ComponentKey, "warnings").Logger()
	taxierrors.SetZerologWarnFunc(func(warning error) {
		ev := warnings.Warn()
		if obj, ok := warning.(zerolog.LogObjectMarshaler); ok {
			ev = ev.EmbedObject(obj)
		}
		ev.Msg(warning.Error())
	})
	return nil
}

// ToLogLevel parses a textual level.
func ToLogLevel(level string) (Level, error) {
	switch level {
	case "info", "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}
