package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

const sentryFlushTimeout = 2 * time.Second

// Log is the global logger instance
var Log *slog.Logger

// Options configures the global logger.
type Options struct {
	Development bool
	SentryDSN   string
	// File, when set, receives a JSON copy of every record with size-based rotation.
	File string
}

// Init initializes the global logger based on environment
// Development: Text format with Debug level
// Production: JSON format with Info level
// Optionally sends errors to Sentry and mirrors records to a rotating file.
// The returned closer flushes Sentry and closes the log file.
func Init(opts Options) io.Closer {
	var level slog.Level
	var handlers []slog.Handler
	closer := &closers{}

	// Base handler for stdout (always enabled)
	if opts.Development {
		level = slog.LevelDebug
		handlers = append(handlers, slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))
	} else {
		level = slog.LevelInfo
		handlers = append(handlers, slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))
	}

	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		closer.files = append(closer.files, file)
		handlers = append(handlers, slog.NewJSONHandler(file, &slog.HandlerOptions{
			Level: level,
		}))
	}

	// Optional Sentry handler (sends errors only)
	if opts.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              opts.SentryDSN,
			TracesSampleRate: 1.0,
		})
		if err == nil {
			closer.sentry = true
			handlers = append(handlers, slogsentry.Option{
				Level: slog.LevelError,
			}.NewSentryHandler())
		}
	}

	// Use multi-handler if we have multiple, otherwise use single
	var handler slog.Handler
	if len(handlers) > 1 {
		handler = slogmulti.Fanout(handlers...)
	} else {
		handler = handlers[0]
	}

	Log = slog.New(handler)
	slog.SetDefault(Log)

	return closer
}

type closers struct {
	sentry bool
	files  []io.Closer
}

func (c *closers) Close() error {
	if c.sentry {
		sentry.Flush(sentryFlushTimeout)
	}
	var firstErr error
	for _, f := range c.files {
		err := f.Close()
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
