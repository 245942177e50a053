package log

import (
	"context"
	"encoding/hex"
	"log/slog"
)

// SlogAdapter mirrors trail events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.ConnectionID != "" {
		attrs = append(attrs, slog.String("conn_id", event.ConnectionID))
	}
	if event.Address != "" {
		attrs = append(attrs, slog.String("address", event.Address))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Attribute != nil:
		attrs = append(attrs,
			slog.String("op", event.Attribute.Op.String()),
			slog.Bool("success", event.Attribute.Success),
		)
		if event.Attribute.AttributeID != "" {
			attrs = append(attrs, slog.String("attribute", event.Attribute.AttributeID))
		}
		if len(event.Attribute.Value) > 0 {
			attrs = append(attrs, slog.String("value", hex.EncodeToString(event.Attribute.Value)))
		}
		if event.Attribute.Op == OpDiscover && event.Direction == DirectionIn {
			attrs = append(attrs, slog.Int("services", event.Attribute.Count))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Scan != nil:
		attrs = append(attrs,
			slog.String("name", event.Scan.Name),
			slog.Int("rssi", event.Scan.RSSI),
		)
		if event.Scan.FailureCode != 0 {
			attrs = append(attrs, slog.Int("failure_code", event.Scan.FailureCode))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "trail", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
