// Package rebachlog is the core's structured logger: a timestamped log
// file under the configured logs_location, level-tagged lines, optional
// ANSI coloring on a terminal, and running warning/error counters the
// Summary Reporter prints at the end of a run. Ported from the original
// Log.py (log_config, message, _count_errorwarning,
// _format_messagetype_ansi), using the teacher's own ambient style of
// bare stdlib `log` calls rather than an external logging framework.
package rebachlog

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Level is a log severity, matching Python logging's named levels.
type Level string

const (
	Debug   Level = "DEBUG"
	Info    Level = "INFO"
	Warning Level = "WARNING"
	Error   Level = "ERROR"
)

const ansiReset = "\033[0m"

var ansiByLevel = map[Level]string{
	Warning: "\033[33m",
	Error:   "\033[31m",
}

// Logger writes timestamped, level-tagged lines to a log file (and
// optionally the terminal), and tallies warnings/errors for the final
// summary line.
type Logger struct {
	mu            sync.Mutex
	file          *os.File
	logger        *log.Logger
	terminal      io.Writer
	colorEnabled  bool
	warningsCount int
	errorsCount   int
}

// New creates the log file `log-YYYY-MM-DD_HH-MM-SS.log` under dir and
// returns a Logger that writes to it. When showInTerminal is true, lines
// are also echoed to stdout, colorized if stdout is a terminal.
func New(dir string, showInTerminal bool, now time.Time) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("rebachlog: cannot create logs_location %q: %w", dir, err)
	}

	name := fmt.Sprintf("log-%s.log", now.Format("2006-01-02_15-04-05"))
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("rebachlog: cannot open %q: %w", path, err)
	}

	l := &Logger{
		file:   f,
		logger: log.New(f, "", 0),
	}
	if showInTerminal {
		l.terminal = os.Stdout
		l.colorEnabled = isatty.IsTerminal(os.Stdout.Fd())
	}
	return l, nil
}

// Close flushes and closes the underlying log file.
func (l *Logger) Close() error {
	return l.file.Close()
}

// Message writes one log line at the given level, formatted
// "YYYY-MM-DD HH:MM:SS,mmm:LEVEL: message" (spec.md §7), and updates the
// running warning/error counters.
func (l *Logger) Message(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch level {
	case Warning:
		l.warningsCount++
	case Error:
		l.errorsCount++
	}

	text := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("%s:%s: %s", time.Now().Format("2006-01-02 15:04:05,000"), level, text)
	l.logger.Println(line)

	if l.terminal != nil {
		if l.colorEnabled {
			if color, ok := ansiByLevel[level]; ok {
				fmt.Fprintln(l.terminal, color+line+ansiReset)
				return
			}
		}
		fmt.Fprintln(l.terminal, line)
	}
}

func (l *Logger) Debugf(format string, args ...interface{})   { l.Message(Debug, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})    { l.Message(Info, format, args...) }
func (l *Logger) Warningf(format string, args ...interface{}) { l.Message(Warning, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{})   { l.Message(Error, format, args...) }

// Counts returns the running warning/error tally for the Summary Reporter.
func (l *Logger) Counts() (warnings, errors int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.warningsCount, l.errorsCount
}
