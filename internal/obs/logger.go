// Package obs bootstraps logging, tracing, error reporting and the metrics
// endpoint for authd.
package obs

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogConfig struct {
	Level  string
	Pretty bool
	App    string
	Env    string
	Ver    string
}

// ParseLevel maps a level name to a zap level. Unknown names give info.
func ParseLevel(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// NewLogger writes JSON lines to stdout, or colored console output when
// Pretty is set. JSON output is sampled per second so a burst of failed
// logins cannot flood the log. Error and above carry a stacktrace.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	enc := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
	}

	var encoder zapcore.Encoder
	if c.Pretty {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(enc)
	} else {
		encoder = zapcore.NewJSONEncoder(enc)
	}

	level := zap.NewAtomicLevelAt(ParseLevel(c.Level))
	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)
	if !c.Pretty {
		core = zapcore.NewSamplerWithOptions(core, time.Second, 100, 100)
	}

	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
		zap.Fields(serviceFields(c)...),
	), nil
}

func serviceFields(c LogConfig) []zap.Field {
	var fs []zap.Field
	for _, kv := range [][2]string{{"service", c.App}, {"env", c.Env}, {"version", c.Ver}} {
		if kv[1] != "" {
			fs = append(fs, zap.String(kv[0], kv[1]))
		}
	}
	return fs
}
