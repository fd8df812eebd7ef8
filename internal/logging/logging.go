package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Fields aliases logrus.Fields so callers don't import logrus directly.
type Fields map[string]interface{}

// Log wraps logrus.Logger.
type Log struct {
	*logrus.Logger
}

// Entry is a component-scoped log entry.
type Entry struct {
	*logrus.Entry
}

// Options controls logger construction.
type Options struct {
	Level      string // debug|info|warn|error, default info
	FilePath   string // when set, logs rotate through lumberjack
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Stdout     bool // also mirror to stdout when FilePath is set
}

// New builds a JSON logger. With an empty Options it logs to stdout at info.
func New(opts Options) *Log {
	logger := logrus.New()

	level := opts.Level
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if lvl, err := logrus.ParseLevel(strings.ToLower(level)); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	if opts.FilePath != "" {
		rotated := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    orDefault(opts.MaxSizeMB, 100),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 14),
			Compress:   true,
		}
		if opts.Stdout {
			logger.SetOutput(io.MultiWriter(os.Stdout, rotated))
		} else {
			logger.SetOutput(rotated)
		}
	} else {
		logger.SetOutput(os.Stdout)
	}

	return &Log{Logger: logger}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// WithComponent tags every entry with the owning component name.
func (l *Log) WithComponent(component string) *Entry {
	return &Entry{Entry: l.Logger.WithField("component", component)}
}

func (l *Log) WithFields(fields Fields) *Entry {
	return &Entry{Entry: l.Logger.WithFields(logrus.Fields(fields))}
}

func (e *Entry) WithComponent(component string) *Entry {
	return &Entry{Entry: e.Entry.WithField("component", component)}
}

func (e *Entry) WithFields(fields Fields) *Entry {
	return &Entry{Entry: e.Entry.WithFields(logrus.Fields(fields))}
}

func (e *Entry) WithError(err error) *Entry {
	return &Entry{Entry: e.Entry.WithError(err)}
}
