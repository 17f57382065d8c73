package ingest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailhead-retreats/mediaingest/internal/ledger"
	"github.com/trailhead-retreats/mediaingest/internal/metrics"
	"github.com/trailhead-retreats/mediaingest/internal/models"
)

func sampleSummary() *Summary {
	country, code := "Panama", "PA"
	return &Summary{
		Discovered:     2,
		Classified:     1,
		DryRunRecorded: 1,
		Failed:         1,
		Duration:       1500 * time.Millisecond,
		Records: []models.UploadRecord{{
			Filename:    "beach.jpg",
			FolderPath:  "panama",
			Country:     &country,
			CountryCode: &code,
			Category:    models.CategoryDestination,
			Tags:        []string{"beach"},
			AltText:     "Beach",
			Confidence:  models.ConfidenceHigh,
		}},
		Failures: []models.FailureRecord{{Filename: "bad.jpg", FolderPath: "peru", ErrorMessage: "failed to read file: permission denied"}},
	}
}

func TestWriteOutputs(t *testing.T) {
	dir := t.TempDir()
	out := Outputs{
		ResultsFile:  filepath.Join(dir, "results.json"),
		FailuresFile: filepath.Join(dir, "failures.json"),
		ReportFile:   filepath.Join(dir, "report.yaml"),
		MetricsFile:  filepath.Join(dir, "mediaingest.prom"),
		Run:          ledger.RunInfo{Root: "/photos", DryRun: true},
	}
	m := metrics.New()
	m.IncImage(metrics.OutcomeDryRun)

	require.NoError(t, WriteOutputs(sampleSummary(), out, m))

	records, err := ledger.ReadResults(out.ResultsFile)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	report, err := os.ReadFile(out.ReportFile)
	require.NoError(t, err)
	assert.Contains(t, string(report), "duration: 1.5s")
	assert.Contains(t, string(report), "permission denied")

	prom, err := os.ReadFile(out.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `mediaingest_images_total{outcome="dry_run"} 1`)
}

func TestWriteOutputsSkipsOptionalFiles(t *testing.T) {
	dir := t.TempDir()
	out := Outputs{
		ResultsFile:  filepath.Join(dir, "results.json"),
		FailuresFile: filepath.Join(dir, "failures.json"),
	}
	require.NoError(t, WriteOutputs(&Summary{}, out, nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, sampleSummary(), true)

	out := buf.String()
	assert.Contains(t, out, "Images Found:       2")
	assert.Contains(t, out, "Dry Run Records:    1")
	assert.NotContains(t, out, "Published:")
	assert.Contains(t, out, "peru/bad.jpg: failed to read file: permission denied")
}

func TestSummaryErr(t *testing.T) {
	assert.ErrorIs(t, sampleSummary().Err(), ErrRunFailed)
	assert.NoError(t, (&Summary{}).Err())
}
