package logger

import (
	"context"
	"iter"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Level mirrors the original Logger's LogLevel enum. Ordering matches
// the source's list-index comparison: Debug is lowest, Critical
// highest.
type Level string

const (
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

var levelRank = map[Level]int{
	LevelDebug:    0,
	LevelInfo:     1,
	LevelWarning:  2,
	LevelError:    3,
	LevelCritical: 4,
}

// GE reports whether l is at least as severe as other, the Go
// equivalent of the source LogLevel.__ge__.
func (l Level) GE(other Level) bool {
	return levelRank[l] >= levelRank[other]
}

// Event is one emitted log record, retained for administrative
// consumers in addition to being rendered through zap.
type Event struct {
	Level Level
	Msg   string
	Data  any
	Time  time.Time
}

// Logger renders structured records through zap and simultaneously
// feeds an internal queue that Events can drain, letting operational
// tooling observe the same stream the zap backend writes out.
type Logger struct {
	sugar  *zap.SugaredLogger
	events chan *Event
}

// New builds a Logger. mode selects the zap.Config preset: "prod" or
// "production" for zap.NewProductionConfig, anything else for
// zap.NewDevelopmentConfig — matching RomanQed-gqs's logger.New.
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{
		sugar:  zl.Sugar(),
		events: make(chan *Event, 4096),
	}, nil
}

func (l *Logger) emit(level Level, msg string, data any) {
	select {
	case l.events <- &Event{Level: level, Msg: msg, Data: data, Time: time.Now()}:
	default:
		// queue full; the zap write below still happens, only the
		// administrative tee is lossy under sustained backpressure.
	}
	var fields []any
	if data != nil {
		fields = []any{"data", data}
	}
	switch level {
	case LevelDebug:
		l.sugar.Debugw(msg, fields...)
	case LevelWarning:
		l.sugar.Warnw(msg, fields...)
	case LevelError:
		l.sugar.Errorw(msg, fields...)
	case LevelCritical:
		// Errorw, not DPanicw: DPanic panics in zap's development
		// config, and a logging call must never itself crash the
		// worker process.
		l.sugar.Errorw(msg, fields...)
	default:
		l.sugar.Infow(msg, fields...)
	}
}

func (l *Logger) Debug(msg string, data any)    { l.emit(LevelDebug, msg, data) }
func (l *Logger) Info(msg string, data any)     { l.emit(LevelInfo, msg, data) }
func (l *Logger) Warning(msg string, data any)  { l.emit(LevelWarning, msg, data) }
func (l *Logger) Error(msg string, data any)    { l.emit(LevelError, msg, data) }
func (l *Logger) Critical(msg string, data any) { l.emit(LevelCritical, msg, data) }

// Stop pushes the sentinel that ends a subsequent Events range.
func (l *Logger) Stop() {
	l.events <- nil
}

// Events yields retained log events in order until Stop is called or
// ctx is canceled, the Go analogue of the source's events generator.
func (l *Logger) Events(ctx context.Context) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-l.events:
				if e == nil {
					return
				}
				if !yield(*e) {
					return
				}
			}
		}
	}
}
