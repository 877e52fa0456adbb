package alerting

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes alerts to the structured log. It is always
// configured so alerts are never silently dropped.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier returns a LogNotifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Name() string { return "log" }

func (l *LogNotifier) Notify(_ context.Context, a Alert) error {
	level := zerolog.ErrorLevel
	switch a.Severity {
	case SeverityInfo:
		level = zerolog.InfoLevel
	case SeverityWarning:
		level = zerolog.WarnLevel
	}
	evt := l.log.WithLevel(level).Str("alert_key", a.Key).Str("title", a.Title)
	for _, f := range a.Fields {
		evt = evt.Str(f.Name, f.Value)
	}
	evt.Msg(a.Message)
	return nil
}
