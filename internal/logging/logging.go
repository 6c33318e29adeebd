// Package logging is the small leveled logger shared by the registrar, the
// host simulation and the CLI.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Levels, lowest first. LevelNoPrint silences everything.
const (
	LevelTrace = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelNoPrint
)

// EnvLevel names the environment variable read at start-up. It accepts a
// number or a level name.
const EnvLevel = "SHMEM_LOG_LEVEL"

var (
	level   atomic.Int32
	noColor atomic.Bool

	magenta = string([]byte{27, 91, 57, 53, 109}) // Trace
	green   = string([]byte{27, 91, 57, 50, 109}) // Debug
	blue    = string([]byte{27, 91, 57, 52, 109}) // Info
	yellow  = string([]byte{27, 91, 57, 51, 109}) // Warn
	red     = string([]byte{27, 91, 57, 49, 109}) // Error
	reset   = string([]byte{27, 91, 48, 109})

	colors    = []string{magenta, green, blue, yellow, red}
	levelName = []string{"Trace", "Debug", "Info", "Warn", "Error"}
)

func init() {
	level.Store(LevelWarn)
	if v := os.Getenv(EnvLevel); v != "" {
		if n, ok := ParseLevel(v); ok {
			level.Store(int32(n))
		}
	}
}

// ParseLevel accepts "0".."5" or a level name such as "debug".
func ParseLevel(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= LevelTrace && n <= LevelNoPrint
	}
	for i, name := range levelName {
		if strings.EqualFold(name, s) {
			return i, true
		}
	}
	if strings.EqualFold(s, "none") {
		return LevelNoPrint, true
	}
	return 0, false
}

// SetLevel changes the level of every Logger. Out-of-range values are ignored.
func SetLevel(l int) {
	if l >= LevelTrace && l <= LevelNoPrint {
		level.Store(int32(l))
	}
}

// Level returns the current level.
func Level() int { return int(level.Load()) }

// DisableColor strips ANSI colors from all output.
func DisableColor(disable bool) { noColor.Store(disable) }

// Logger writes leveled lines prefixed with time, caller and a component name.
type Logger struct {
	name      string
	out       io.Writer
	callDepth int
}

// New returns a Logger writing to out, or to stdout when out is nil.
func New(name string, out io.Writer) *Logger {
	if out == nil {
		out = os.Stdout
	}
	return &Logger{name: name, out: out, callDepth: 4}
}

func (l *Logger) logf(lvl int, format string, a ...interface{}) {
	if int(level.Load()) > lvl {
		return
	}
	suffix := reset
	if noColor.Load() {
		suffix = ""
	}
	if _, err := fmt.Fprintf(l.out, l.prefix(lvl)+format+suffix+"\n", a...); err != nil {
		fmt.Fprintf(os.Stderr, "logger write failed: %v\n", err)
	}
}

func (l *Logger) Errorf(format string, a ...interface{}) { l.logf(LevelError, format, a...) }

func (l *Logger) Warnf(format string, a ...interface{}) { l.logf(LevelWarn, format, a...) }

func (l *Logger) Infof(format string, a ...interface{}) { l.logf(LevelInfo, format, a...) }

func (l *Logger) Debugf(format string, a ...interface{}) { l.logf(LevelDebug, format, a...) }

func (l *Logger) Tracef(format string, a ...interface{}) { l.logf(LevelTrace, format, a...) }

func (l *Logger) prefix(lvl int) string {
	var buffer [64]byte
	buf := bytes.NewBuffer(buffer[:0])
	if !noColor.Load() {
		_, _ = buf.WriteString(colors[lvl])
	}
	_, _ = buf.WriteString(levelName[lvl])
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(time.Now().Format("2006-01-02 15:04:05.999999"))
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(l.location())
	_ = buf.WriteByte(' ')
	if l.name != "" {
		_, _ = buf.WriteString(l.name)
		_ = buf.WriteByte(' ')
	}
	return buf.String()
}

func (l *Logger) location() string {
	_, file, line, ok := runtime.Caller(l.callDepth)
	if !ok {
		file = "???"
		line = 0
	}
	file = filepath.Base(file)
	return file + ":" + strconv.Itoa(line)
}
