package logger

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func reset() {
	viper.Reset()
	initialized = false
	once = sync.Once{}
}

func TestInitLogger(t *testing.T) {
	reset()
	assert.NotPanics(t, func() { InitLogger("catalog-sync", "INFO") })
	assert.True(t, initialized)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestInitLogger_EmptyAppName(t *testing.T) {
	reset()
	assert.Panics(t, func() { InitLogger("", "INFO") })
}

func TestInitLogger_EmptyLevelDefaultsToWarn(t *testing.T) {
	reset()
	InitLogger("catalog-sync", "")
	assert.True(t, initialized)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestInit_FromViper(t *testing.T) {
	tests := []struct {
		name      string
		appName   string
		level     string
		wantPanic bool
	}{
		{name: "valid", appName: "catalog-sync", level: "DEBUG"},
		{name: "missing app name", level: "DEBUG", wantPanic: true},
		{name: "missing level", appName: "catalog-sync", wantPanic: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reset()
			if tt.appName != "" {
				viper.Set("APP_NAME", tt.appName)
			}
			if tt.level != "" {
				viper.Set("APP_LOG_LEVEL", tt.level)
			}
			if tt.wantPanic {
				assert.Panics(t, Init)
				return
			}
			assert.NotPanics(t, Init)
		})
	}
}

func TestSetLogLevel(t *testing.T) {
	for name, level := range levels {
		t.Run(name, func(t *testing.T) {
			setLogLevel(strings.ToLower(name))
			assert.Equal(t, level, zerolog.GlobalLevel())
		})
	}
	assert.Panics(t, func() { setLogLevel("VERBOSE") })
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func TestTraceHook(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	var buf bytes.Buffer
	l := zerolog.New(&buf).Hook(TraceHook{})

	l.Info().Ctx(context.Background()).Msg("no span")
	assert.Contains(t, buf.String(), `"traceInfo":"(,)"`)

	buf.Reset()
	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	l.Info().Ctx(ctx).Msg("with span")
	assert.Contains(t, buf.String(), "0102030405060708090a0b0c0d0e0f10,0102030405060708")
}

func TestConsoleWriterFormat(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(consoleWriter(&buf)).With().Str("processInfo", "- [1, ] -").Logger()
	l.Warn().Msg("pending entries growing")
	out := buf.String()
	assert.Contains(t, out, "- [WARN ] -")
	assert.Contains(t, out, "pending entries growing")
}
