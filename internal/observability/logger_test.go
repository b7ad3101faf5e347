package observability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingLogger struct {
	debugs int
	infos  int
	warns  int
	errors int
}

func (r *recordingLogger) Debug(string, ...Field) { r.debugs++ }
func (r *recordingLogger) Info(string, ...Field)  { r.infos++ }
func (r *recordingLogger) Warn(string, ...Field)  { r.warns++ }
func (r *recordingLogger) Error(string, ...Field) { r.errors++ }

func TestSetLoggerOverridesGlobal(t *testing.T) {
	recorder := new(recordingLogger)
	SetLogger(recorder)
	t.Cleanup(func() { SetLogger(nil) })

	Log().Debug("test")
	Log().Warn("test")
	require.Equal(t, 1, recorder.debugs)
	require.Equal(t, 1, recorder.warns)

	SetLogger(nil)
	Log().Info("noop")
	require.Equal(t, 0, recorder.infos)
}

func TestZapLoggerForwardsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(core))

	logger.Warn("untracked", F("object", "Bullet(Clone)"), F("cause", errors.New("boom")))

	entries := logs.FilterMessage("untracked").All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.WarnLevel, entries[0].Level)
	ctx := entries[0].ContextMap()
	require.Equal(t, "Bullet(Clone)", ctx["object"])
	require.Equal(t, "boom", ctx["cause"])
}

func TestNewZapRejectsUnknownLevel(t *testing.T) {
	_, err := NewZap(ZapConfig{Level: "loud"})
	require.Error(t, err)
}

func TestNewZapDefaults(t *testing.T) {
	z, err := NewZap(ZapConfig{OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	require.NotNil(t, z)
	require.True(t, z.Core().Enabled(zapcore.InfoLevel))
	require.False(t, z.Core().Enabled(zapcore.DebugLevel))
}

func TestJoinErrors(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	logger := NewZapLogger(zap.New(core))

	require.NoError(t, JoinErrors(logger, "shutdown", []error{nil, nil}))
	require.Equal(t, 0, logs.Len())

	first := errors.New("first")
	err := JoinErrors(logger, "shutdown", []error{first, nil, errors.New("second")})
	require.Error(t, err)
	require.ErrorIs(t, err, first)
	require.Contains(t, err.Error(), "shutdown failed")
	require.Equal(t, 1, logs.FilterMessage("operation errors").Len())
	require.EqualValues(t, 2, logs.All()[0].ContextMap()["error_count"])
}
