// Package logger provides the process-wide structured logger.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the global logger instance. It writes to stderr until Configure
// is called.
var Logger = newLogger(os.Stderr, log.InfoLevel)

func newLogger(w io.Writer, level log.Level) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Prefix:          "chatbot",
	})
	l.SetLevel(level)
	return l
}

// Configure sets the level and destination. An empty level falls back to
// CHATBOT_LOG_LEVEL and then to info. A non-empty file enables rotated file
// output, which the TUI needs because it owns the terminal.
func Configure(level, file string) {
	if level == "" {
		level = os.Getenv("CHATBOT_LOG_LEVEL")
	}
	var out io.Writer = os.Stderr
	if file != "" {
		out = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
	}
	Logger = newLogger(out, ParseLevel(level))
}

// ParseLevel converts a level name, defaulting to info.
func ParseLevel(level string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// SetOutput redirects the current logger, keeping its level.
func SetOutput(w io.Writer) {
	Logger = newLogger(w, Logger.GetLevel())
}

func Debug(msg interface{}, keyvals ...interface{}) { Logger.Debug(msg, keyvals...) }

func Info(msg interface{}, keyvals ...interface{}) { Logger.Info(msg, keyvals...) }

func Warn(msg interface{}, keyvals ...interface{}) { Logger.Warn(msg, keyvals...) }

func Error(msg interface{}, keyvals ...interface{}) { Logger.Error(msg, keyvals...) }

// Fatal logs and exits with status 1.
func Fatal(msg interface{}, keyvals ...interface{}) { Logger.Fatal(msg, keyvals...) }
