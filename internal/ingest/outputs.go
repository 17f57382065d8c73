package ingest

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/trailhead-retreats/mediaingest/internal/ledger"
	"github.com/trailhead-retreats/mediaingest/internal/metrics"
)

// Outputs names the files written at the end of a run. Empty report and
// metrics paths are skipped.
type Outputs struct {
	ResultsFile  string
	FailuresFile string
	ReportFile   string
	MetricsFile  string
	Run          ledger.RunInfo
}

// WriteOutputs persists the ledgers, then the optional report and metrics
func WriteOutputs(s *Summary, out Outputs, m *metrics.Recorder) error {
	if err := ledger.WriteResults(out.ResultsFile, s.Records); err != nil {
		return err
	}
	if err := ledger.WriteFailures(out.FailuresFile, s.Failures); err != nil {
		return err
	}
	slog.Info("Ledgers written", "results", out.ResultsFile, "records", len(s.Records), "failures_file", out.FailuresFile, "failures", len(s.Failures))

	if out.ReportFile != "" {
		run := out.Run
		if run.StartedAt == "" {
			run.StartedAt = time.Now().Add(-s.Duration).UTC().Format(time.RFC3339)
		}
		run.Duration = ledger.FormatDuration(s.Duration)

		report := ledger.NewReport(run, s.Counts(), s.Records, s.Failures)
		if err := ledger.WriteReport(out.ReportFile, report); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		slog.Info("Report written", "path", out.ReportFile)
	}

	if out.MetricsFile != "" && m != nil {
		if err := m.WriteTextfile(out.MetricsFile); err != nil {
			return err
		}
		slog.Info("Metrics written", "path", out.MetricsFile)
	}

	return nil
}
