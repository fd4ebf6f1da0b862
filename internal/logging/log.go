package logging

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

var base = New(os.Stderr, "info", "text")

// New builds a logger writing to out. Unknown levels fall back to info.
func New(out io.Writer, level, format string) *logrus.Logger {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	var formatter logrus.Formatter = &CallerTextFormatter{
		TextFormatter: logrus.TextFormatter{
			FullTimestamp:    true,
			CallerPrettyfier: func(*runtime.Frame) (string, string) { return "", "" },
		},
	}
	if format == "json" {
		formatter = &logrus.JSONFormatter{}
	}
	return &logrus.Logger{
		Out:          out,
		Formatter:    formatter,
		Hooks:        make(logrus.LevelHooks),
		Level:        lvl,
		ReportCaller: true,
		ExitFunc:     os.Exit,
	}
}

// Configure replaces the process-wide base logger.
func Configure(level, format string) {
	base = New(os.Stderr, level, format)
}

// Named returns a component logger derived from the base logger.
func Named(component string) *logrus.Entry {
	return base.WithField("component", component)
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *logrus.Entry {
	return logrus.NewEntry(New(io.Discard, "panic", "text"))
}

// CallerTextFormatter prefixes each message with the calling file and line.
type CallerTextFormatter struct {
	logrus.TextFormatter
}

// Format renders a single log entry. The caller is already in the prefix,
// so the text formatter's own file and func fields are suppressed.
func (f *CallerTextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if entry.HasCaller() {
		entry.Message = fmt.Sprintf("[%-15s:%03d] %s", path.Base(entry.Caller.File), entry.Caller.Line, entry.Message)
	}
	return f.TextFormatter.Format(entry)
}
