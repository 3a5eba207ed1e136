// Package logger provides process-wide structured logging for the engine.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	// Logger is the general-purpose (debug-level-and-up) logger.
	Logger *logrus.Logger
	// InfoLogger carries informational and audit messages (statement outcomes, row counts).
	InfoLogger *logrus.Logger
	// ErrorLogger carries failures, including fatal-abort conditions from resource exhaustion.
	ErrorLogger *logrus.Logger
)

// Config controls where log output goes and at what level.
type Config struct {
	ErrorLogPath string
	InfoLogPath  string
	Level        string
}

// CustomFormatter renders a compact single-line record with caller info, in the
// style this project has always used instead of logrus's default formatters.
type CustomFormatter struct {
	TimestampFormat string
}

func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format(f.TimestampFormat)
	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}
	return []byte(fmt.Sprintf("[%s] [%s] (%s) %s\n", timestamp, level, getCaller(), entry.Message)), nil
}

func getCaller() string {
	for i := 2; i < 20; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.Contains(file, "/logrus/") || strings.Contains(file, "logger.go") || strings.Contains(file, "sirupsen") {
			continue
		}
		funcName := runtime.FuncForPC(pc).Name()
		return fmt.Sprintf("%s:%s:%d", filepath.Base(file), funcName, line)
	}
	return "unknown:unknown:0"
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// Init wires up Logger, InfoLogger and ErrorLogger. Safe to call more than once
// (e.g. once per opened database) since every engine instance logs through the
// same process-wide loggers.
func Init(cfg Config) error {
	formatter := &CustomFormatter{TimestampFormat: "15:04:05 MST 2006/01/02"}

	Logger = logrus.New()
	Logger.SetFormatter(formatter)
	Logger.SetLevel(parseLevel(cfg.Level))

	InfoLogger = logrus.New()
	InfoLogger.SetFormatter(formatter)
	InfoLogger.SetLevel(parseLevel(cfg.Level))

	ErrorLogger = logrus.New()
	ErrorLogger.SetFormatter(formatter)
	ErrorLogger.SetLevel(parseLevel(cfg.Level))

	if cfg.InfoLogPath != "" {
		f, err := openLogFile(cfg.InfoLogPath)
		if err != nil {
			InfoLogger.SetOutput(os.Stdout)
			InfoLogger.Warnf("failed to open info log file %s, falling back to stdout: %v", cfg.InfoLogPath, err)
		} else {
			InfoLogger.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	} else {
		InfoLogger.SetOutput(os.Stdout)
	}

	if cfg.ErrorLogPath != "" {
		f, err := openLogFile(cfg.ErrorLogPath)
		if err != nil {
			ErrorLogger.SetOutput(os.Stderr)
			ErrorLogger.Warnf("failed to open error log file %s, falling back to stderr: %v", cfg.ErrorLogPath, err)
		} else {
			ErrorLogger.SetOutput(io.MultiWriter(os.Stderr, f))
		}
	} else {
		ErrorLogger.SetOutput(os.Stderr)
	}

	Logger.SetOutput(InfoLogger.Out)
	return nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
}

func Info(args ...interface{})                 { if InfoLogger != nil { InfoLogger.Info(args...) } }
func Infof(format string, args ...interface{})  { if InfoLogger != nil { InfoLogger.Infof(format, args...) } }
func Debug(args ...interface{})                 { if Logger != nil { Logger.Debug(args...) } }
func Debugf(format string, args ...interface{}) { if Logger != nil { Logger.Debugf(format, args...) } }
func Warn(args ...interface{})                  { if Logger != nil { Logger.Warn(args...) } }
func Warnf(format string, args ...interface{})  { if Logger != nil { Logger.Warnf(format, args...) } }
func Error(args ...interface{})                 { if ErrorLogger != nil { ErrorLogger.Error(args...) } }
func Errorf(format string, args ...interface{}) { if ErrorLogger != nil { ErrorLogger.Errorf(format, args...) } }
