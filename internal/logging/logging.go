// Package logging is the levelled logger of the command line tools.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	logging "github.com/op/go-logging"
)

// Level names accepted by SetLevel.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

const module = "pictconv"

var (
	log       = logging.MustGetLogger(module)
	formatter = logging.MustStringFormatter(`%{time:2006/01/02 15:04:05} [%{level}] %{message}`)

	mu      sync.Mutex
	level   = logging.INFO
	backend logging.LeveledBackend
)

func init() {
	SetOutput(os.Stderr)
}

// SetLevel sets the lowest level that is printed. An unknown level is an
// error and leaves the level unchanged.
func SetLevel(name string) error {
	l := name
	if strings.EqualFold(l, LevelWarn) {
		l = "warning"
	}
	lvl, err := logging.LogLevel(l)
	if err != nil {
		return fmt.Errorf("unknown log level %q", name)
	}
	mu.Lock()
	defer mu.Unlock()
	level = lvl
	backend.SetLevel(level, module)
	return nil
}

// SetOutput redirects all messages to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	backend = logging.AddModuleLevel(logging.NewBackendFormatter(logging.NewLogBackend(w, "", 0), formatter))
	backend.SetLevel(level, module)
	log.SetBackend(backend)
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) { log.Debugf(format, args...) }

// Info logs an info message
func Info(format string, args ...interface{}) { log.Infof(format, args...) }

// Warn logs a warning message
func Warn(format string, args ...interface{}) { log.Warningf(format, args...) }

// Error logs an error message
func Error(format string, args ...interface{}) { log.Errorf(format, args...) }
