package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

func setupLogging(debug bool) {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	log.SetLevel(logrus.InfoLevel)
	if debug {
		log.SetLevel(logrus.DebugLevel)
	}
}

// logBoxHook sends log entries to the TUI log box instead of the terminal.
type logBoxHook struct {
	ch chan string
}

func newLogBoxHook() *logBoxHook {
	return &logBoxHook{ch: make(chan string, 32)}
}

func (h *logBoxHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *logBoxHook) Fire(e *logrus.Entry) error {
	msg := fmt.Sprintf("[%s] %s", e.Time.Format("15:04:05"), e.Message)
	if e.Level <= logrus.WarnLevel {
		msg = fmt.Sprintf("[%s] %s: %s", e.Time.Format("15:04:05"), e.Level, e.Message)
	}
	select {
	case h.ch <- msg:
	default:
		// Drop if channel full
	}
	return nil
}

// Messages returns the forwarded entries.
func (h *logBoxHook) Messages() <-chan string {
	return h.ch
}

// redirect routes l into h and silences its normal output. The returned
// function restores the previous output.
func (h *logBoxHook) redirect(l *logrus.Logger) (restore func()) {
	out := l.Out
	l.AddHook(h)
	l.SetOutput(io.Discard)
	return func() {
		l.ReplaceHooks(make(logrus.LevelHooks))
		l.SetOutput(out)
	}
}
