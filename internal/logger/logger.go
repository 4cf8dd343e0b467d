package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/apex/log"
)

// Environment variables to configure the log file path and level.
const (
	envLogPath  = "PAGECACHE_LOG"
	envLogLevel = "PAGECACHE_LOG_LEVEL"
)

var (
	std           *log.Logger
	logFile       *os.File
	isInitialized bool
	mu            sync.Mutex
)

// InitFromEnv initializes the logger using PAGECACHE_LOG or a default path.
func InitFromEnv() error {
	path := os.Getenv(envLogPath)
	if path == "" {
		// Default to the directory where the executable is located
		if exePath, err := os.Executable(); err == nil {
			path = filepath.Join(filepath.Dir(exePath), "page-cache.log")
		} else {
			path = "./page-cache.log"
		}
	}
	return Init(path, os.Getenv(envLogLevel))
}

// Init initializes the logger to write to the provided file path at the given
// level ("debug", "info", "warn", "error"; empty means info).
// It creates parent directories if needed and opens the file in append mode.
func Init(path, level string) error {
	mu.Lock()
	defer mu.Unlock()
	if isInitialized {
		return nil
	}
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}
	if err := ensureParentDir(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	logFile = f
	std = &log.Logger{Handler: &lineHandler{w: f}, Level: lvl}
	isInitialized = true
	return nil
}

// InitWriter routes log output to w instead of a file. Intended for tests and
// for commands that log to stderr.
func InitWriter(w io.Writer, level string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	std = &log.Logger{Handler: &lineHandler{w: w}, Level: lvl}
	isInitialized = true
	return nil
}

// Close closes the underlying log file, if open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	isInitialized = false
	std = nil
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		return err
	}
	return nil
}

// Debugf logs diagnostic messages.
func Debugf(format string, args ...any) { current().Debugf(format, args...) }

// Infof logs informational messages.
func Infof(format string, args ...any) { current().Infof(format, args...) }

// Warnf logs warnings.
func Warnf(format string, args ...any) { current().Warnf(format, args...) }

// Errorf logs errors.
func Errorf(format string, args ...any) { current().Errorf(format, args...) }

func current() *log.Logger {
	mu.Lock()
	l := std
	mu.Unlock()
	if l != nil {
		return l
	}
	// Fallback: initialize with default if not already.
	if err := InitFromEnv(); err == nil {
		mu.Lock()
		l = std
		mu.Unlock()
	}
	// Close may have run since InitFromEnv.
	if l == nil {
		return &log.Logger{Handler: &lineHandler{w: os.Stderr}, Level: log.InfoLevel}
	}
	return l
}

func parseLevel(level string) (log.Level, error) {
	if strings.TrimSpace(level) == "" {
		return log.InfoLevel, nil
	}
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

// lineHandler writes one "date time [LEVEL] message key=value..." line per entry.
type lineHandler struct {
	mu sync.Mutex
	w  io.Writer
}

func (h *lineHandler) HandleLog(e *log.Entry) error {
	var sb strings.Builder
	sb.WriteString(e.Timestamp.Format("2006/01/02 15:04:05.000000"))
	sb.WriteString(" [")
	sb.WriteString(strings.ToUpper(e.Level.String()))
	sb.WriteString("] ")
	sb.WriteString(e.Message)
	for _, name := range e.Fields.Names() {
		fmt.Fprintf(&sb, " %s=%v", name, e.Fields.Get(name))
	}
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
