package ledger

import (
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/trailhead-retreats/mediaingest/internal/models"
)

// RunInfo describes how a run was configured
type RunInfo struct {
	Root        string `yaml:"root"`
	Dataset     string `yaml:"dataset"`
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	DryRun      bool   `yaml:"dryrun"`
	Concurrency int    `yaml:"concurrency"`
	StartedAt   string `yaml:"startedat"`
	Duration    string `yaml:"duration"`
}

// Counts are the run totals
type Counts struct {
	Discovered     int `yaml:"discovered"`
	CacheHits      int `yaml:"cachehits"`
	Classified     int `yaml:"classified"`
	Fallbacks      int `yaml:"fallbacks"`
	Published      int `yaml:"published"`
	PublishReused  int `yaml:"publishreused"`
	DryRunRecorded int `yaml:"dryrunrecorded"`
	Failed         int `yaml:"failed"`
}

// Report is the YAML summary written next to the ledgers
type Report struct {
	Run        RunInfo                `yaml:"run"`
	Counts     Counts                 `yaml:"counts"`
	ByCategory map[string]int         `yaml:"bycategory"`
	ByCountry  map[string]int         `yaml:"bycountry"`
	Failures   []models.FailureRecord `yaml:"failures,omitempty"`
}

// NewReport fills the breakdowns from the ledgers
func NewReport(run RunInfo, counts Counts, records []models.UploadRecord, failures []models.FailureRecord) Report {
	r := Report{
		Run:        run,
		Counts:     counts,
		ByCategory: make(map[string]int),
		ByCountry:  make(map[string]int),
		Failures:   failures,
	}

	for _, rec := range records {
		r.ByCategory[string(rec.Category)]++
		country := "unknown"
		if rec.Country != nil {
			country = *rec.Country
		}
		r.ByCountry[country]++
	}

	return r
}

// WriteReport marshals the report to YAML at path
func WriteReport(path string, r Report) error {
	data, err := yaml.Marshal(&r)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return writeAtomic(path, data)
}

// ReadReport loads a report written by WriteReport
func ReadReport(data []byte) (Report, error) {
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("failed to parse YAML report: %w", err)
	}
	return r, nil
}

// FormatDuration rounds to milliseconds for display
func FormatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

// SortedKeys returns m's keys in lexical order
func SortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
