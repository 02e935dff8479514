// Package logging provides the process-wide, level-filtered, thread-safe log
// sink shared by every collaborator. It never blocks a reactor thread for
// more than the cost of a channel send: the actual write to the underlying
// sink happens on one background drain goroutine, mirroring the original's
// single background-drain-thread-plus-producer-queue logger
// (original_source/src/base/include/logger.h).
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the narrow surface the reactor/router/db code depends on, so
// only this package imports logrus directly.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// asyncLogger owns the single drain goroutine draining into a logrus.Logger.
type asyncLogger struct {
	entries chan entry
	done    chan struct{}
	base    *logrus.Logger
}

type entry struct {
	level logrus.Level
	msg   string
}

const queueDepth = 4096

// New builds a level-filtered logrus sink. levelName is one of
// "debug"/"info"/"warn"/"error" (config key log.level); path is an optional
// file to append to in addition to stderr ("" means stderr only).
func New(levelName, path string) (*asyncLogger, error) {
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		level = logrus.InfoLevel
	}

	base := logrus.New()
	base.SetLevel(level)
	base.SetFormatter(&logrus.JSONFormatter{})

	out := io.Writer(os.Stderr)
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		out = io.MultiWriter(os.Stderr, f)
	}
	base.SetOutput(out)

	a := &asyncLogger{
		entries: make(chan entry, queueDepth),
		done:    make(chan struct{}),
		base:    base,
	}
	go a.drain()
	return a, nil
}

func (a *asyncLogger) drain() {
	defer close(a.done)
	for e := range a.entries {
		a.base.Log(e.level, e.msg)
	}
}

func (a *asyncLogger) enqueue(level logrus.Level, msg string) {
	if !a.base.IsLevelEnabled(level) {
		return
	}
	select {
	case a.entries <- entry{level, msg}:
	default:
		// Queue full: drop rather than block the producer (reactor thread).
		// A dropped log line is preferable to stalling epoll_wait.
	}
}

func (a *asyncLogger) Debugf(format string, args ...interface{}) {
	a.enqueue(logrus.DebugLevel, sprintf(format, args...))
}
func (a *asyncLogger) Infof(format string, args ...interface{}) {
	a.enqueue(logrus.InfoLevel, sprintf(format, args...))
}
func (a *asyncLogger) Warnf(format string, args ...interface{}) {
	a.enqueue(logrus.WarnLevel, sprintf(format, args...))
}
func (a *asyncLogger) Errorf(format string, args ...interface{}) {
	a.enqueue(logrus.ErrorLevel, sprintf(format, args...))
}

// Close stops accepting new entries and waits for the drain goroutine to
// flush the queue. Called once, during process shutdown.
func (a *asyncLogger) Close() {
	close(a.entries)
	<-a.done
}
