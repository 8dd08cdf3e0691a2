package util

import (
	"maps"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"
)

// callerFields builds the base log fields for the caller lvl frames up the stack
func callerFields(lvl int, additionalFields ...logrus.Fields) logrus.Fields {
	_, file, line, _ := runtime.Caller(lvl + 1)

	logFields := logrus.Fields{
		"file": filepath.Join(filepath.Base(filepath.Dir(file)), filepath.Base(file)),
		"line": line,
	}

	if len(additionalFields) > 0 {
		maps.Copy(logFields, additionalFields[0])
	}

	return logFields
}

// HandleFatalError logs the error and exits
func HandleFatalError(err error, additionalFields ...logrus.Fields) {
	HandleFatalErrorAtCallLevel(err, 2, additionalFields...)
}

// HandleFatalErrorAtCallLevel logs the error at a specific call level and exits
func HandleFatalErrorAtCallLevel(err error, lvl int, additionalFields ...logrus.Fields) {
	if err == nil {
		return
	}

	logrus.WithFields(callerFields(lvl, additionalFields...)).Fatal(err)
}

// HandleError logs the error with the caller's location and returns it unchanged
// so it can be handed straight back up the stack
func HandleError(err error, additionalFields ...logrus.Fields) error {
	return HandleErrorAtCallLevel(err, 2, additionalFields...)
}

// HandleErrorAtCallLevel logs the error with the location lvl frames up the stack
func HandleErrorAtCallLevel(err error, lvl int, additionalFields ...logrus.Fields) error {
	if err == nil {
		return nil
	}

	fields := callerFields(lvl, additionalFields...)
	if e, ok := err.(*Error); ok {
		maps.Copy(fields, e.Fields())
	}

	logrus.WithFields(fields).Error(err)
	return err
}

// LogWarning logs a warning
func LogWarning(msg string, additionalFields ...logrus.Fields) {
	LogWarningAtCallLevel(msg, 2, additionalFields...)
}

// LogWarningAtCallLevel logs a warning at a specific call level
func LogWarningAtCallLevel(msg string, lvl int, additionalFields ...logrus.Fields) {
	logrus.WithFields(callerFields(lvl, additionalFields...)).Warn(msg)
}

// LogInfo logs an info message
func LogInfo(msg string, additionalFields ...logrus.Fields) {
	LogInfoAtCallLevel(msg, 2, additionalFields...)
}

func LogInfoAtCallLevel(msg string, lvl int, additionalFields ...logrus.Fields) {
	logrus.WithFields(callerFields(lvl, additionalFields...)).Info(msg)
}

// LogDebug logs a debug message
func LogDebug(msg string, additionalFields ...logrus.Fields) {
	LogDebugAtCallLevel(msg, 2, additionalFields...)
}

// LogDebugAtCallLevel logs a debug message at a specific call level
func LogDebugAtCallLevel(msg string, lvl int, additionalFields ...logrus.Fields) {
	logrus.WithFields(callerFields(lvl, additionalFields...)).Debug(msg)
}

// ConfigureLogging sets the global logrus level and formatter
func ConfigureLogging(level string) {
	switch level {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	fmtter := new(logrus.TextFormatter)
	fmtter.TimestampFormat = "2006-01-02 15:04:05"
	fmtter.FullTimestamp = true
	logrus.SetFormatter(fmtter)
}
