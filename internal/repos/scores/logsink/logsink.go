// Package logsink records scores as structured log lines only.
package logsink

import (
	"context"
	"log/slog"

	"github.com/fastprodman/arcadegate/internal/repos/scores"
)

var _ scores.Recorder = (*Sink)(nil)

type Sink struct {
	logger *slog.Logger
}

// New returns a Sink writing to logger, or to slog.Default() when logger is nil.
func New(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}

	return &Sink{logger: logger}
}

func (s *Sink) Record(ctx context.Context, sc scores.Score) error {
	attrs := []any{
		"session_id", sc.SessionID,
		"score", string(sc.Value),
		"recorded_at", sc.RecordedAt,
	}
	if sc.ContinueScore != nil {
		attrs = append(attrs, "continue_score", *sc.ContinueScore)
	}

	s.logger.InfoContext(ctx, "score submitted", attrs...)

	return nil
}
