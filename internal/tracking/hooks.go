package tracking

import (
	"log/slog"

	"voicebus.click/internal/engine"
)

// SlogHook logs every lifecycle event at debug level
type SlogHook struct {
	logger *slog.Logger
}

// NewSlogHook creates a new SlogHook with the given logger.
// If logger is nil, uses the default logger.
func NewSlogHook(logger *slog.Logger) *SlogHook {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogHook{logger: logger}
}

// Observer returns the hook as an engine observer
func (s *SlogHook) Observer() engine.Observer {
	return func(ev engine.Event) {
		attrs := []any{
			"kind", ev.Kind.String(),
			"slot", string(ev.Slot),
			"voice_id", ev.VoiceID,
			"name", ev.Name,
		}
		if ev.Path != "" {
			attrs = append(attrs, "path", ev.Path)
		}
		if ev.LoadTime > 0 {
			attrs = append(attrs, "load_time", ev.LoadTime)
		}
		if ev.Err != nil {
			attrs = append(attrs, "error", ev.Err)
		}
		s.logger.Debug("voice event", attrs...)
	}
}
