package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/couchcryptid/broadband-data-etl/internal/domain"
)

// LogNotifier writes run reports to the log. It is the fallback when no
// report topic is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, report domain.RunReport) error {
	level := slog.LevelInfo
	if report.Status == domain.RunFailed {
		level = slog.LevelError
	}
	n.logger.Log(context.Background(), level, report.Subject(),
		"run_id", report.RunID,
		"status", report.Status,
		"body", strings.Join(report.Lines(), "\n"),
	)
	return nil
}
