package utils

import (
	"io"
	"os"
	"strings"

	"go-history/internal/config"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the severity level of a log entry
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) logrusLevel() logrus.Level {
	switch l {
	case DEBUG:
		return logrus.DebugLevel
	case WARN:
		return logrus.WarnLevel
	case ERROR:
		return logrus.ErrorLevel
	case FATAL:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// ParseLogLevel maps a LOG_LEVEL value onto a LogLevel, defaulting to INFO.
func ParseLogLevel(value string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// StructuredLogger provides structured logging capabilities
type StructuredLogger struct {
	logger   *logrus.Logger
	minLevel LogLevel
}

var defaultLogger *StructuredLogger

func init() {
	defaultLogger = NewStructuredLogger()
}

// NewStructuredLogger creates a new structured logger instance
func NewStructuredLogger() *StructuredLogger {
	return NewStructuredLoggerWithOutput(os.Stderr, ParseLogLevel(config.GetEnvConfig().LogLevel))
}

// NewStructuredLoggerWithOutput creates a logger writing to out at the given minimum level.
func NewStructuredLoggerWithOutput(out io.Writer, minLevel LogLevel) *StructuredLogger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(minLevel.logrusLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	return &StructuredLogger{
		logger:   logger,
		minLevel: minLevel,
	}
}

// SetDefaultLogger replaces the package level logger.
func SetDefaultLogger(sl *StructuredLogger) {
	if sl != nil {
		defaultLogger = sl
	}
}

// shouldLog checks if a message should be logged based on level
func (sl *StructuredLogger) shouldLog(level LogLevel) bool {
	return level >= sl.minLevel
}

// Debug logs a debug message
func (sl *StructuredLogger) Debug(format string, args ...any) {
	if !sl.shouldLog(DEBUG) {
		return
	}
	sl.logger.Debugf(format, args...)
}

// Info logs an info message
func (sl *StructuredLogger) Info(format string, args ...any) {
	if !sl.shouldLog(INFO) {
		return
	}
	sl.logger.Infof(format, args...)
}

// Warn logs a warning message
func (sl *StructuredLogger) Warn(format string, args ...any) {
	if !sl.shouldLog(WARN) {
		return
	}
	sl.logger.Warnf(format, args...)
}

// Error logs an error message
func (sl *StructuredLogger) Error(format string, args ...any) {
	if !sl.shouldLog(ERROR) {
		return
	}
	sl.logger.Errorf(format, args...)
}

// Fatal logs a fatal message and exits
func (sl *StructuredLogger) Fatal(format string, args ...any) {
	sl.logger.Fatalf(format, args...)
}

func (sl *StructuredLogger) entry(component string, err error, fields map[string]any) *logrus.Entry {
	e := sl.logger.WithField("component", component)
	if err != nil {
		e = e.WithError(err)
	}
	if len(fields) > 0 {
		e = e.WithFields(logrus.Fields(fields))
	}
	return e
}

// DebugWithContext logs a debug message with component context
func (sl *StructuredLogger) DebugWithContext(component, message string, err error) {
	if !sl.shouldLog(DEBUG) {
		return
	}
	sl.entry(component, err, nil).Debug(message)
}

// WarnWithContext logs a warning with component context
func (sl *StructuredLogger) WarnWithContext(component, message string, err error) {
	if !sl.shouldLog(WARN) {
		return
	}
	sl.entry(component, err, nil).Warn(message)
}

// ErrorWithContext logs an error with component context
func (sl *StructuredLogger) ErrorWithContext(component, message string, err error) {
	if !sl.shouldLog(ERROR) {
		return
	}
	sl.entry(component, err, nil).Error(message)
}

// InfoWithFields logs info with component context and extra fields
func (sl *StructuredLogger) InfoWithFields(component, message string, fields map[string]any) {
	if !sl.shouldLog(INFO) {
		return
	}
	sl.entry(component, nil, fields).Info(message)
}

// Package-level convenience functions using the default logger
func LogDebug(format string, args ...any) {
	defaultLogger.Debug(format, args...)
}

func LogInfo(format string, args ...any) {
	defaultLogger.Info(format, args...)
}

func LogFatal(format string, args ...any) {
	defaultLogger.Fatal(format, args...)
}

func LogDebugWithContext(component, message string, err error) {
	defaultLogger.DebugWithContext(component, message, err)
}

func LogWarnWithContext(component, message string, err error) {
	defaultLogger.WarnWithContext(component, message, err)
}

func LogErrorWithContext(component, message string, err error) {
	defaultLogger.ErrorWithContext(component, message, err)
}

func LogInfoWithFields(component, message string, fields map[string]any) {
	defaultLogger.InfoWithFields(component, message, fields)
}
