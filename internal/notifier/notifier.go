// Package notifier defines the operator-facing alert surface and ships
// a structured-log-backed implementation. A richer transport (e.g.
// Telegram) can be added later without the caller changing.
package notifier

import "go.uber.org/zap"

// Severity classes an event by how urgently an operator needs to see it.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "info"
	}
}

// Event is a single notable occurrence: an executed trade, a
// kill-switch trip, a risk rejection worth surfacing, a persistence
// failure. Fields is an open bag of structured context, logged as
// zap fields by the log-backed Notifier.
type Event struct {
	Severity Severity
	Message  string
	Fields   map[string]any
}

// Notifier delivers Events to wherever an operator is watching.
// Implementations must not block the caller for longer than a logging
// call would.
type Notifier interface {
	Notify(Event)
}

// LogNotifier renders every Event as a structured zap log line. It is
// the only concrete variant shipped; a Telegram-backed implementation
// would satisfy the same interface without touching callers.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a Notifier that logs through logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs ev at the zap level matching its severity.
func (n *LogNotifier) Notify(ev Event) {
	fields := make([]zap.Field, 0, len(ev.Fields)+1)
	fields = append(fields, zap.String("severity", ev.Severity.String()))
	for k, v := range ev.Fields {
		fields = append(fields, zap.Any(k, v))
	}

	switch ev.Severity {
	case SeverityCritical:
		n.logger.Error(ev.Message, fields...)
	case SeverityWarning:
		n.logger.Warn(ev.Message, fields...)
	default:
		n.logger.Info(ev.Message, fields...)
	}
}
