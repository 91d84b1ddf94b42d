// Package toast carries short user-visible notifications from components to whatever shows them.
package toast

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level is the severity of a toast.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Toast is one notification.
type Toast struct {
	Level   Level     `json:"level"`
	Title   string    `json:"title,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier shows toasts to a user.
type Notifier interface {
	Success(message, title string)
	Info(message, title string)
	Warning(message, title string)
	Error(message, title string)
}

// Func adapts a function receiving whole toasts into a Notifier.
type Func func(Toast)

func (f Func) show(level Level, message, title string) {
	f(Toast{Level: level, Title: title, Message: message, At: time.Now()})
}

func (f Func) Success(message, title string) { f.show(LevelSuccess, message, title) }
func (f Func) Info(message, title string)    { f.show(LevelInfo, message, title) }
func (f Func) Warning(message, title string) { f.show(LevelWarning, message, title) }
func (f Func) Error(message, title string)   { f.show(LevelError, message, title) }

// Send routes t to the method of n matching its level.
func Send(n Notifier, t Toast) {
	switch t.Level {
	case LevelSuccess:
		n.Success(t.Message, t.Title)
	case LevelWarning:
		n.Warning(t.Message, t.Title)
	case LevelError:
		n.Error(t.Message, t.Title)
	default:
		n.Info(t.Message, t.Title)
	}
}

// Logger writes toasts to logger; errors and warnings keep their level.
func Logger(logger *zap.Logger) Notifier {
	return Func(func(t Toast) {
		fields := []zap.Field{zap.String("level", string(t.Level)), zap.String("title", t.Title)}
		switch t.Level {
		case LevelError:
			logger.Error(t.Message, fields...)
		case LevelWarning:
			logger.Warn(t.Message, fields...)
		default:
			logger.Info(t.Message, fields...)
		}
	})
}

// Fanout sends every toast to each non-nil notifier in order.
func Fanout(notifiers ...Notifier) Notifier {
	return Func(func(t Toast) {
		for _, n := range notifiers {
			if n != nil {
				Send(n, t)
			}
		}
	})
}

// Discard drops toasts.
var Discard Notifier = Func(func(Toast) {})

// Recorder keeps every toast it is shown. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *Recorder) record(t Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, t)
}

func (r *Recorder) Success(message, title string) { Func(r.record).Success(message, title) }
func (r *Recorder) Info(message, title string)    { Func(r.record).Info(message, title) }
func (r *Recorder) Warning(message, title string) { Func(r.record).Warning(message, title) }
func (r *Recorder) Error(message, title string)   { Func(r.record).Error(message, title) }

// Toasts returns a copy of what was recorded.
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.toasts...)
}

// Count returns how many toasts of level were recorded.
func (r *Recorder) Count(level Level) int {
	n := 0
	for _, t := range r.Toasts() {
		if t.Level == level {
			n++
		}
	}
	return n
}

// Last returns the most recent toast.
func (r *Recorder) Last() (Toast, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.toasts) == 0 {
		return Toast{}, false
	}
	return r.toasts[len(r.toasts)-1], true
}
