package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//lint:file-ignore U1001 Ignore all unused code, it's external

// Logger is a wrapper around zap.Logger that tags every line with the
// principal that triggered it and the operation it was doing, on top
// of the subsystem name it was obtained under (see [GetLogger]).
type Logger struct {
	module string
	logger *zap.Logger
	sugar  *zap.SugaredLogger
	level  zapcore.Level
	writer io.Writer // For compatibility with tests and viper
}

const (
	principal    = "principal"
	operation    = "operation"
	defPrincipal = "system"
	defOperation = "unspecified"
	module       = "module"
	decisionID   = "decision_id"
)

// internal function to create a logger without tracking. Application should
// call GetLogger() to retrieved a configured logger.
func newLogger(module string) *Logger {
	// Configure encoder
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	// Determine formatter from environment
	var encoder zapcore.Encoder
	logFormatter := os.Getenv("LOG_FORMATTER")
	switch logFormatter {
	case "text":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	// Determine if we should report caller
	reportCaller := os.Getenv("LOG_REPORT_CALLER") != ""

	// Create core
	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), zapcore.InfoLevel)

	// Build logger
	options := []zap.Option{
		zap.AddCallerSkip(1), // Skip this wrapper function
	}
	if reportCaller {
		options = append(options, zap.AddCaller())
	}

	logger := zap.New(core, options...)

	return &Logger{
		module: module,
		logger: logger,
		sugar:  logger.Sugar(),
		level:  zapcore.InfoLevel,
	}
}

// IsDebugEnabled returns true if the current logging level is debug or higher.
// This function should be used as condition guard to logging debug where a lot
// of computation is needed to generate log output and in a performance critical
// location.
//
//	Ex   if logger.IsDebugEnabled() {
//	         computing what to pass to debug call
//	         logger.Debugf()
//	     }
func (l *Logger) IsDebugEnabled() bool {
	return l.level <= zapcore.DebugLevel
}

// IsTraceEnabled ...
func (l *Logger) IsTraceEnabled() bool {
	return l.level <= zapcore.DebugLevel // zap doesn't have trace, use debug
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level zapcore.Level) {
	l.level = level
	// Recreate the logger with the new level
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	var encoder zapcore.Encoder
	logFormatter := os.Getenv("LOG_FORMATTER")
	switch logFormatter {
	case "text":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	reportCaller := os.Getenv("LOG_REPORT_CALLER") != ""

	// Use custom writer if set, otherwise use stdout
	var output io.Writer = os.Stdout
	if l.writer != nil {
		output = l.writer
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(output), level)

	options := []zap.Option{
		zap.AddCallerSkip(1),
	}
	if reportCaller {
		options = append(options, zap.AddCaller())
	}

	l.logger = zap.New(core, options...)
	l.sugar = l.logger.Sugar()
}

// IsLevelEnabled checks if a level is enabled
func (l *Logger) IsLevelEnabled(level zapcore.Level) bool {
	return l.level <= level
}

// Out is for compatibility with tests and viper - returns the output writer
func (l *Logger) Out() io.Writer {
	if l.writer != nil {
		return l.writer
	}
	return os.Stdout
}

// WithDecisionID returns a Logger that tags every subsequent line with
// decisionID, on top of whatever principal/operation each call
// supplies. A decision point (see pkg/decisionpoint/http and
// pkg/decisionpoint/envoy) mints one decision ID per incoming request
// and scopes its logger to it, so every line touching that one access
// decision can be correlated by decision_id regardless of which
// principal or operation logged it. The returned Logger shares the
// receiver's underlying core; SetLevel/SetOut on one do not affect
// the other's already-attached field.
func (l *Logger) WithDecisionID(decisionIDValue string) *Logger {
	clone := *l
	clone.sugar = l.sugar.With(zap.String(decisionID, decisionIDValue))
	return &clone
}

// SetOut sets the output writer (for tests)
func (l *Logger) SetOut(w io.Writer) {
	l.writer = w
	// Recreate logger with custom writer
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	var encoder zapcore.Encoder
	logFormatter := os.Getenv("LOG_FORMATTER")
	switch logFormatter {
	case "text":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	reportCaller := os.Getenv("LOG_REPORT_CALLER") != ""
	core := zapcore.NewCore(encoder, zapcore.AddSync(w), l.level)

	options := []zap.Option{
		zap.AddCallerSkip(1),
	}
	if reportCaller {
		options = append(options, zap.AddCaller())
	}

	l.logger = zap.New(core, options...)
	l.sugar = l.logger.Sugar()
}

// Fatal logs fatal message
func (l *Logger) Fatal(principalID, operationID string, args ...interface{}) {
	l.sugar.With(
		zap.String(principal, principalID),
		zap.String(operation, operationID),
		zap.String(module, l.module),
	).Fatal(args...)
}

// Fatalf logs fatal message
func (l *Logger) Fatalf(principalID, operationID string, format string, args ...interface{}) {
	l.sugar.With(
		zap.String(principal, principalID),
		zap.String(operation, operationID),
		zap.String(module, l.module),
	).Fatalf(format, args...)
}

// Panic logs panic message
func (l *Logger) Panic(principalID, operationID string, args ...interface{}) {
	l.sugar.With(
		zap.String(principal, principalID),
		zap.String(operation, operationID),
		zap.String(module, l.module),
	).Panic(args...)
}

// Panicf logs panic message
func (l *Logger) Panicf(principalID, operationID string, format string, args ...interface{}) {
	l.sugar.With(
		zap.String(principal, principalID),
		zap.String(operation, operationID),
		zap.String(module, l.module),
	).Panicf(format, args...)
}

// Trace log trace message
func (l *Logger) Trace(principalID, operationID string, args ...interface{}) {
	l.sugar.With(
		zap.String(principal, principalID),
		zap.String(operation, operationID),
		zap.String(module, l.module),
	).Debug(args...)
}

// Tracef log trace message
func (l *Logger) Tracef(principalID, operationID string, format string, args ...interface{}) {
	l.sugar.With(
		zap.String(principal, principalID),
		zap.String(operation, operationID),
		zap.String(module, l.module),
	).Debugf(format, args...)
}

// Debug log debug message
func (l *Logger) Debug(principalID, operationID string, args ...interface{}) {
	l.sugar.With(
		zap.String(principal, principalID),
		zap.String(operation, operationID),
		zap.String(module, l.module),
	).Debug(args...)
}

// Debugf log debug message
func (l *Logger) Debugf(principalID, operationID string, format string, args ...interface{}) {
	l.sugar.With(
		zap.String(principal, principalID),
		zap.String(operation, operationID),
		zap.String(module, l.module),
	).Debugf(format, args...)
}

// Info logs info message
func (l *Logger) Info(principalID, operationID string, args ...interface{}) {
	l.sugar.With(
		zap.String(principal, principalID),
		zap.String(operation, operationID),
		zap.String(module, l.module),
	).Info(args...)
}

// Infof logs info message
func (l *Logger) Infof(principalID, operationID string, format string, args ...interface{}) {
	l.sugar.With(
		zap.String(principal, principalID),
		zap.String(operation, operationID),
		zap.String(module, l.module),
	).Infof(format, args...)
}

// Warn logs warning message
func (l *Logger) Warn(principalID, operationID string, args ...interface{}) {
	l.sugar.With(
		zap.String(principal, principalID),
		zap.String(operation, operationID),
		zap.String(module, l.module),
	).Warn(args...)
}

// Warnf logs warning message
func (l *Logger) Warnf(principalID, operationID string, format string, args ...interface{}) {
	l.sugar.With(
		zap.String(principal, principalID),
		zap.String(operation, operationID),
		zap.String(module, l.module),
	).Warnf(format, args...)
}

// Error logs error message
func (l *Logger) Error(principalID, operationID string, args ...interface{}) {
	l.sugar.With(
		zap.String(principal, principalID),
		zap.String(operation, operationID),
		zap.String(module, l.module),
	).Error(args...)
}

// Errorf logs error message
func (l *Logger) Errorf(principalID, operationID string, format string, args ...interface{}) {
	l.sugar.With(
		zap.String(principal, principalID),
		zap.String(operation, operationID),
		zap.String(module, l.module),
	).Errorf(format, args...)
}

// Below are functions using default principal and operation

// SysFatal logs fatal message with default principal and operation
func (l *Logger) SysFatal(args ...interface{}) {
	l.Fatal(defPrincipal, defOperation, args...)
}

// SysFatalf logs fatal message with default principal and operation
func (l *Logger) SysFatalf(format string, args ...interface{}) {
	l.Fatalf(defPrincipal, defOperation, format, args...)
}

// SysPanic logs panic message with default principal and operation
func (l *Logger) SysPanic(args ...interface{}) {
	l.Panic(defPrincipal, defOperation, args...)
}

// SysPanicf logs panic message with default principal and operation
func (l *Logger) SysPanicf(format string, args ...interface{}) {
	l.Panicf(defPrincipal, defOperation, format, args...)
}

// SysTrace logs trace message with default principal and operation
func (l *Logger) SysTrace(args ...interface{}) {
	l.Trace(defPrincipal, defOperation, args...)
}

// SysTracef logs trace message with default principal and operation
func (l *Logger) SysTracef(format string, args ...interface{}) {
	l.Tracef(defPrincipal, defOperation, format, args...)
}

// SysDebug logs debug message with default principal and operation
func (l *Logger) SysDebug(args ...interface{}) {
	l.Debug(defPrincipal, defOperation, args...)
}

// SysDebugf logs debug message with default principal and operation
func (l *Logger) SysDebugf(format string, args ...interface{}) {
	l.Debugf(defPrincipal, defOperation, format, args...)
}

// SysInfo logs info message with default principal and operation
func (l *Logger) SysInfo(args ...interface{}) {
	l.Info(defPrincipal, defOperation, args...)
}

// SysInfof logs info message with default principal and operation
func (l *Logger) SysInfof(format string, args ...interface{}) {
	l.Infof(defPrincipal, defOperation, format, args...)
}

// SysWarn logs warning message with default principal and operation
func (l *Logger) SysWarn(args ...interface{}) {
	l.Warn(defPrincipal, defOperation, args...)
}

// SysWarnf logs warning message with default principal and operation
func (l *Logger) SysWarnf(format string, args ...interface{}) {
	l.Warnf(defPrincipal, defOperation, format, args...)
}

// SysError logs error message with default principal and operation
func (l *Logger) SysError(args ...interface{}) {
	l.Error(defPrincipal, defOperation, args...)
}

// SysErrorf logs error message with default principal and operation
func (l *Logger) SysErrorf(format string, args ...interface{}) {
	l.Errorf(defPrincipal, defOperation, format, args...)
}
