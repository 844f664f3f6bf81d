// Package logging provides the levelled logger shared by the reconstruction
// packages. Output goes to the terminal, to a rotating file, or both.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger writes levelled messages prefixed with its name. Loggers derived
// with Named share the writer and its lock.
type Logger struct {
	mu     *sync.Mutex
	writer io.Writer

	Name  string
	Level Level

	TimeFormat string
	NoColor    bool
	JSON       bool
}

// Options controls where a Logger writes.
type Options struct {
	Name       string
	Level      Level
	File       string
	NoTerminal bool
	NoColor    bool
	JSON       bool

	// Rotation settings for File, see lumberjack.Logger
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type logEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Component string `json:"component,omitempty"`
	Message   string `json:"message"`
}

// New builds a Logger from opts. Terminal output is used when no file is
// configured, even if NoTerminal is set.
func New(opts Options) *Logger {
	var writers []io.Writer
	if !opts.NoTerminal {
		writers = append(writers, os.Stdout)
	}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 128),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 16),
			Compress:   opts.Compress,
		})
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	return &Logger{
		mu:         &sync.Mutex{},
		writer:     io.MultiWriter(writers...),
		Name:       opts.Name,
		Level:      opts.Level,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    opts.NoColor || opts.NoTerminal,
		JSON:       opts.JSON,
	}
}

// NewWriter returns an uncoloured Logger writing to w. Mostly useful in tests.
func NewWriter(w io.Writer, level Level) *Logger {
	return &Logger{
		mu:         &sync.Mutex{},
		writer:     w,
		Level:      level,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return NewWriter(io.Discard, Error+1)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (l *Logger) log(level Level, msg string, args ...any) {
	if l == nil || level < l.Level {
		return
	}

	timestamp := time.Now().Format(l.TimeFormat)
	formatted := fmt.Sprintf(msg, args...)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.JSON {
		entry := logEntry{
			Timestamp: timestamp,
			Level:     level.String(),
			Component: l.Name,
			Message:   formatted,
		}
		b, _ := json.Marshal(entry)
		fmt.Fprintf(l.writer, "%s\n", b)
		return
	}

	prefix := fmt.Sprintf("[%s] %-5s", timestamp, level)
	if l.Name != "" {
		prefix = fmt.Sprintf("%s [%s]", prefix, l.Name)
	}
	if l.NoColor {
		fmt.Fprintf(l.writer, "%s %s\n", prefix, formatted)
	} else {
		fmt.Fprintf(l.writer, "%s%s %s\033[0m\n", level.color(), prefix, formatted)
	}
}

func (l *Logger) Debug(msg string, args ...any) { l.log(Debug, msg, args...) }

func (l *Logger) Info(msg string, args ...any) { l.log(Info, msg, args...) }

func (l *Logger) Warn(msg string, args ...any) { l.log(Warn, msg, args...) }

func (l *Logger) Error(msg string, args ...any) { l.log(Error, msg, args...) }

// Named returns a child logger sharing the same writer, with name appended
// to the component path.
func (l *Logger) Named(name string) *Logger {
	if l == nil {
		return nil
	}
	full := name
	if l.Name != "" {
		full = l.Name + "/" + name
	}
	return &Logger{
		mu:         l.mu,
		writer:     l.writer,
		Name:       full,
		Level:      l.Level,
		TimeFormat: l.TimeFormat,
		NoColor:    l.NoColor,
		JSON:       l.JSON,
	}
}
