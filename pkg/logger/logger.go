package logger

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/metric"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"
)

const timeFormat = "2006-01-02 15:04:05.000"

var (
	once        sync.Once
	initialized = false
	signalChan  = make(chan os.Signal, 1)
)

// Init initializes the logger by fetching the log level and app name from the viper configuration
func Init() {
	appName := viper.GetString("APP_NAME")
	logLevel := viper.GetString("APP_LOG_LEVEL")
	if len(appName) == 0 {
		panic("APP_NAME is not set!")
	}
	if len(logLevel) == 0 {
		panic("APP_LOG_LEVEL is not set!")
	}
	InitLogger(appName, logLevel)
}

// InitLogger initializes the logger with the given app name and log level.
// An empty level falls back to WARN.
func InitLogger(appName, logLevel string) {
	if len(appName) == 0 {
		panic("Application name is not set!")
	}
	if len(logLevel) == 0 {
		log.Warn().Msg("Log level not set, defaulting to WARN")
		logLevel = "WARN"
	}
	if initialized {
		log.Debug().Msgf("Logger already initialized!")
		return
	}
	once.Do(func() {
		setLogLevel(logLevel)
		log.Logger = zerolog.New(consoleWriter(newSink())).
			With().
			Timestamp().
			Str("app", appName).
			Str("processInfo", fmt.Sprintf("- [%d, ] -", os.Getpid())).
			Caller().
			Logger().
			Hook(TraceHook{})

		// [file_name::line_number], method names are not available
		zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
			return fmt.Sprintf("[%s::%d]", file[strings.LastIndex(file, "/")+1:], line)
		}
		zerolog.ErrorStackMarshaler = func(err error) interface{} {
			return fmt.Sprintf("%s\n%s", err, debug.Stack())
		}
		initialized = true
		log.Info().Msg("Logger initialized!")
	})
}

// newSink returns stdout, or a diode ring buffer in front of it when LOG_RB_SIZE is set.
// The ring buffer is flushed on SIGINT/SIGTERM.
func newSink() io.Writer {
	if !viper.IsSet("LOG_RB_SIZE") || viper.GetInt("LOG_RB_SIZE") <= 0 {
		return os.Stdout
	}
	rbSize := viper.GetInt("LOG_RB_SIZE")
	drainingInterval := 5 * time.Millisecond
	if viper.IsSet("LOG_RB_DRAINING_INTERVAL") {
		drainingInterval = viper.GetDuration("LOG_RB_DRAINING_INTERVAL")
	}
	var dropWarnOnce sync.Once
	dw := diode.NewWriter(os.Stdout, rbSize, drainingInterval, func(missed int) {
		metric.Count("log_rb_dropped", int64(missed), nil)
		dropWarnOnce.Do(func() {
			fmt.Fprintf(os.Stderr, "Error from Logger: dropping logs due to buffer overflow\n")
		})
	})
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		_ = dw.Close()
	}()
	return dw
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:           out,
		NoColor:       true,
		TimeFormat:    timeFormat,
		FormatLevel:   func(i interface{}) string { return strings.ToUpper(fmt.Sprintf("- [%-5s] -", i)) },
		FormatCaller:  func(i interface{}) string { return fmt.Sprintf("%s", i) },
		FormatMessage: func(i interface{}) string { return fmt.Sprintf("%s", i) },
		FieldsExclude: []string{"app", "processInfo", "traceInfo"},
		PartsOrder: []string{
			zerolog.TimestampFieldName,
			zerolog.LevelFieldName,
			zerolog.CallerFieldName,
			"processInfo",
			"traceInfo",
			zerolog.MessageFieldName,
		},
	}
}

func setLogLevel(logLevel string) {
	level, ok := levels[strings.ToUpper(logLevel)]
	if !ok {
		log.Panic().Msgf("Incorrect log level - %s", logLevel)
	}
	zerolog.SetGlobalLevel(level)
}

var levels = map[string]zerolog.Level{
	"DEBUG":    zerolog.DebugLevel,
	"INFO":     zerolog.InfoLevel,
	"WARN":     zerolog.WarnLevel,
	"ERROR":    zerolog.ErrorLevel,
	"FATAL":    zerolog.FatalLevel,
	"PANIC":    zerolog.PanicLevel,
	"DISABLED": zerolog.Disabled,
}

// TraceHook stamps the otel trace and span ids carried by the event's context.
type TraceHook struct{}

func (h TraceHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	spanContext := trace.SpanFromContext(e.GetCtx()).SpanContext()
	traceId, spanId := "", ""
	if spanContext.HasTraceID() {
		traceId = spanContext.TraceID().String()
	}
	if spanContext.HasSpanID() {
		spanId = spanContext.SpanID().String()
	}
	e.Str("traceInfo", fmt.Sprintf("(%s,%s)", traceId, spanId))
}
