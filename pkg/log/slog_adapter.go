package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger. Message and state events go
// to Debug, anomalies to Warn, errors to Error.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session_id", event.SessionID),
		slog.String("category", event.Category.String()),
	}
	if event.ServerURL != "" {
		attrs = append(attrs, slog.String("server_url", event.ServerURL))
	}

	level := slog.LevelDebug
	msg := "dm event"

	switch {
	case event.Message != nil:
		msg = "dm message"
		attrs = append(attrs,
			slog.String("direction", event.Direction.String()),
			slog.Int("msg_id", event.Message.MsgID),
		)
		if event.Message.Commands != "" {
			attrs = append(attrs, slog.String("commands", event.Message.Commands))
		}
		if event.Message.Final {
			attrs = append(attrs, slog.Bool("final", true))
		}
		if event.Message.Authenticated {
			attrs = append(attrs, slog.Bool("authenticated", true))
		}
	case event.StateChange != nil:
		msg = "dm state change"
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Anomaly != nil:
		msg = "dm anomaly"
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("context", event.Anomaly.Context),
			slog.String("detail", event.Anomaly.Detail),
		)
	case event.Error != nil:
		msg = "dm error"
		level = slog.LevelError
		attrs = append(attrs,
			slog.String("context", event.Error.Context),
			slog.String("error", event.Error.Message),
		)
	}

	a.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
