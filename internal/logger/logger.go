package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"gopkg.in/natefinch/lumberjack.v2"

	"camdetect/internal/config"
)

// Log file names, one per level.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (debug/info/warning/error) to rotated files and stdout.
type Logger struct {
	log    *logrus.Logger
	logDir string
	files  map[string]*lumberjack.Logger
	mu     sync.Mutex
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(config *config.Config) (*Logger, error) {
	return newLogger(config.LogDirectory, config.LogLevel, os.Stdout)
}

func newLogger(logDir, level string, console io.Writer) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{
		log:    logrus.New(),
		logDir: logDir,
		files:  make(map[string]*lumberjack.Logger),
	}

	l.log.SetOutput(console)
	l.log.SetLevel(parseLevel(level))
	l.log.SetFormatter(&formatter.Formatter{
		TimestampFormat: "2006-01-02 15:04:05",
		HideKeys:        false,
	})

	for _, name := range []string{InfoFile, WarningFile, ErrorFile} {
		l.files[name] = &lumberjack.Logger{
			Filename:   filepath.Join(logDir, name),
			LocalTime:  true,
			MaxSize:    20,
			MaxBackups: 3,
			MaxAge:     7,
		}
	}
	l.log.AddHook(&fileHook{
		files: l.files,
		plain: &formatter.Formatter{NoColors: true, TimestampFormat: "2006-01-02 15:04:05"},
	})

	return l, nil
}

func parseLevel(level string) logrus.Level {
	switch level {
	case "debug":
		return logrus.DebugLevel
	case "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log.Debugf(format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.log.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.log.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.log.Errorf(format, v...)
}

// Directory returns the directory holding the log files.
func (l *Logger) Directory() string {
	return l.logDir
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.files[fileName]
	if !ok {
		return fmt.Errorf("unknown log file: %s", fileName)
	}
	// reopened in append mode on the next write
	if err := f.Close(); err != nil {
		return err
	}

	filePath := filepath.Join(l.logDir, fileName)
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		l.Error("Error opening file: %v", err)
		return err
	}
	defer file.Close()

	l.Info("File %s has been cleared.", fileName)
	return nil
}

// Close closes all log files.
func (l *Logger) Close() error {
	var err error
	for _, f := range l.files {
		err = multierr.Append(err, f.Close())
	}
	return err
}

// fileHook copies entries into the per-level log file.
type fileHook struct {
	files map[string]*lumberjack.Logger
	plain logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	name := InfoFile
	switch entry.Level {
	case logrus.WarnLevel:
		name = WarningFile
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		name = ErrorFile
	}

	line, err := h.plain.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.files[name].Write(line)
	return err
}
