// internal/telemetry/logger.go
package telemetry

import (
	"context"
	"io"
	"log/slog"

	"librarydesk/internal/config"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// NewLogger builds the logger selected by cfg.LogFormat. The otel format
// hands records to the global OpenTelemetry LoggerProvider installed by
// Setup, which correlates them with the active span.
func NewLogger(cfg config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	switch cfg.LogFormat {
	case config.FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)).With(slog.String("service", cfg.ServiceName))
	case config.FormatOTel:
		handler := otelslog.NewHandler(cfg.ServiceName)
		return slog.New(leveled{Handler: handler, level: cfg.LogLevel})
	default:
		return slog.New(slog.NewTextHandler(w, opts)).With(slog.String("service", cfg.ServiceName))
	}
}

// leveled drops records below level before they reach the bridge.
type leveled struct {
	slog.Handler
	level slog.Leveler
}

func (h leveled) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() && h.Handler.Enabled(ctx, l)
}

func (h leveled) WithAttrs(attrs []slog.Attr) slog.Handler {
	return leveled{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h leveled) WithGroup(name string) slog.Handler {
	return leveled{Handler: h.Handler.WithGroup(name), level: h.level}
}
