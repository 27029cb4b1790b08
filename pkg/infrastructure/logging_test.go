package infrastructure_test

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Raikerian/go-konference/pkg/infrastructure"
)

func TestNewLogger(t *testing.T) {
	for _, tc := range []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"WARN", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	} {
		t.Run(tc.level, func(t *testing.T) {
			logger, err := infrastructure.NewLogger(tc.level)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tc.want))
			if tc.want > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tc.want-1))
			}
		})
	}
}

func TestFxLogger_LogEvent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	adapter := infrastructure.NewFxLoggerAdapter(zap.New(core))

	adapter.LogEvent(&fxevent.OnStartExecuting{FunctionName: "start", CallerName: "engine"})
	adapter.LogEvent(&fxevent.Provided{ConstructorName: "NewEngine", OutputTypeNames: []string{"*konference.Engine"}})
	adapter.LogEvent(&fxevent.Stopping{Signal: syscall.SIGTERM})
	adapter.LogEvent(&fxevent.Started{})

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, "OnStart hook executing", entries[0].Message)
	assert.Equal(t, "engine", entries[0].ContextMap()["caller"])
	assert.Equal(t, "Provided", entries[1].Message)
	assert.Equal(t, "Received signal", entries[2].Message)
	assert.Equal(t, "TERMINATED", entries[2].ContextMap()["signal"])
	assert.Equal(t, zapcore.InfoLevel, entries[3].Level)
	assert.Equal(t, "fx", entries[3].LoggerName)
}

func TestFxLogger_Errors(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	adapter := infrastructure.NewFxLoggerAdapter(zap.New(core))

	failure := errors.New("boom")
	for _, event := range []fxevent.Event{
		&fxevent.OnStartExecuted{FunctionName: "start", CallerName: "engine", Err: failure},
		&fxevent.OnStopExecuted{FunctionName: "stop", CallerName: "engine", Err: failure},
		&fxevent.Invoked{FunctionName: "register", Err: failure},
		&fxevent.Started{Err: failure},
		&fxevent.LoggerInitialized{ConstructorName: "NewFxLoggerAdapter", Err: failure},
		&fxevent.Invoked{FunctionName: "ok"},
	} {
		adapter.LogEvent(event)
	}

	require.Equal(t, 5, logs.Len())
	assert.Equal(t, "OnStart hook failed", logs.All()[0].Message)
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["error"])
}

func TestFxPrinter_Printf(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	printer := infrastructure.NewFxPrinter(zap.New(core))

	printer.Printf("listening on %s", ":9464")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "listening on :9464", logs.All()[0].Message)
}

func TestFxIntegration(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	app := fx.New(
		fx.WithLogger(func() fxevent.Logger { return infrastructure.NewFxLoggerAdapter(logger) }),
		fx.Invoke(func() {}),
	)
	require.NoError(t, app.Err())
	assert.NotZero(t, logs.FilterMessage("Invoked").Len())
}
