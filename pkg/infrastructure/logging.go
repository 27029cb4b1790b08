// Package infrastructure provides logging helpers shared by the daemon and tools.
package infrastructure

import (
	"fmt"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewLogger builds a zap logger for the named level. "debug" selects the
// development encoder; every other level logs JSON. Unknown levels fall
// back to info.
func NewLogger(level string) (*zap.Logger, error) {
	var zapConfig zap.Config
	switch strings.ToLower(level) {
	case "debug":
		zapConfig = zap.NewDevelopmentConfig()
	case "warn":
		zapConfig = zap.NewProductionConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapConfig = zap.NewProductionConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapConfig = zap.NewProductionConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create zap logger: %w", err)
	}
	return logger, nil
}

// FxLogger routes Fx lifecycle events and printer output to zap.
type FxLogger struct {
	logger *zap.Logger
}

// NewFxLoggerAdapter returns an fxevent.Logger writing to logger.
func NewFxLoggerAdapter(logger *zap.Logger) fxevent.Logger {
	return &FxLogger{logger: logger.Named("fx")}
}

// NewFxPrinter returns an fx.Printer writing to logger.
func NewFxPrinter(logger *zap.Logger) fx.Printer {
	return &FxLogger{logger: logger.Named("fx")}
}

// LogEvent implements fxevent.Logger.
func (l *FxLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		l.logger.Debug("OnStart hook executing",
			zap.String("caller", e.CallerName),
			zap.String("callee", e.FunctionName))
	case *fxevent.OnStartExecuted:
		l.hookExecuted("OnStart", e.CallerName, e.FunctionName, e.Runtime.String(), e.Err)
	case *fxevent.OnStopExecuting:
		l.logger.Debug("OnStop hook executing",
			zap.String("caller", e.CallerName),
			zap.String("callee", e.FunctionName))
	case *fxevent.OnStopExecuted:
		l.hookExecuted("OnStop", e.CallerName, e.FunctionName, e.Runtime.String(), e.Err)
	case *fxevent.Supplied:
		l.withError(e.Err, "Supplied", zap.String("type", e.TypeName))
	case *fxevent.Provided:
		l.withError(e.Err, "Provided",
			zap.String("constructor", e.ConstructorName),
			zap.Strings("types", e.OutputTypeNames))
	case *fxevent.Invoking:
		l.logger.Debug("Invoking", zap.String("function", e.FunctionName))
	case *fxevent.Invoked:
		l.withError(e.Err, "Invoked", zap.String("function", e.FunctionName))
	case *fxevent.Stopping:
		l.logger.Info("Received signal", zap.String("signal", strings.ToUpper(e.Signal.String())))
	case *fxevent.Stopped:
		l.withError(e.Err, "Stopped")
	case *fxevent.RollingBack:
		l.logger.Error("Start failed, rolling back", zap.Error(e.StartErr))
	case *fxevent.RolledBack:
		l.withError(e.Err, "Rolled back")
	case *fxevent.Started:
		if e.Err != nil {
			l.logger.Error("Start failed", zap.Error(e.Err))
			return
		}
		l.logger.Info("Started")
	case *fxevent.LoggerInitialized:
		l.withError(e.Err, "Logger initialized", zap.String("constructor", e.ConstructorName))
	default:
		l.logger.Debug("Unhandled Fx event", zap.String("event", fmt.Sprintf("%T", event)))
	}
}

// Printf implements fx.Printer.
func (l *FxLogger) Printf(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *FxLogger) hookExecuted(hook, caller, callee, runtime string, err error) {
	fields := []zap.Field{
		zap.String("caller", caller),
		zap.String("callee", callee),
	}
	if err != nil {
		l.logger.Error(hook+" hook failed", append(fields, zap.Error(err))...)
		return
	}
	l.logger.Debug(hook+" hook executed", append(fields, zap.String("runtime", runtime))...)
}

// withError logs msg at debug level, or at error level with err attached.
func (l *FxLogger) withError(err error, msg string, fields ...zap.Field) {
	if err != nil {
		l.logger.Error(msg, append(fields, zap.Error(err))...)
		return
	}
	l.logger.Debug(msg, fields...)
}
