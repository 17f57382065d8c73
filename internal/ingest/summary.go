package ingest

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/trailhead-retreats/mediaingest/internal/ledger"
	"github.com/trailhead-retreats/mediaingest/internal/models"
)

// Summary is the outcome of a completed run. Records and Failures are in
// discovery order.
type Summary struct {
	Discovered      int
	CacheHits       int
	Classified      int
	Fallbacks       int
	Published       int
	PublishReused   int
	DryRunRecorded  int
	Failed          int
	ClassifierCalls int
	Duration        time.Duration

	Records  []models.UploadRecord
	Failures []models.FailureRecord
}

// Counts converts the totals for the YAML report
func (s *Summary) Counts() ledger.Counts {
	return ledger.Counts{
		Discovered:     s.Discovered,
		CacheHits:      s.CacheHits,
		Classified:     s.Classified,
		Fallbacks:      s.Fallbacks,
		Published:      s.Published,
		PublishReused:  s.PublishReused,
		DryRunRecorded: s.DryRunRecorded,
		Failed:         s.Failed,
	}
}

// Err is ErrRunFailed when the failure ledger is not empty
func (s *Summary) Err() error {
	if len(s.Failures) > 0 {
		return fmt.Errorf("%w: %d of %d images", ErrRunFailed, len(s.Failures), s.Discovered)
	}
	return nil
}

func summarize(items []*item) *Summary {
	s := &Summary{
		Discovered: len(items),
		Records:    make([]models.UploadRecord, 0, len(items)),
		Failures:   make([]models.FailureRecord, 0),
	}

	for _, it := range items {
		switch {
		case it.cacheHit:
			s.CacheHits++
		case it.fallback:
			s.Fallbacks++
		case it.state != StateReadFailed:
			s.Classified++
		}

		switch it.state {
		case StateDryRunRecorded:
			s.DryRunRecorded++
			s.Records = append(s.Records, uploadRecord(it))
		case StatePublished:
			if it.reused {
				s.PublishReused++
			} else {
				s.Published++
			}
			s.Records = append(s.Records, uploadRecord(it))
		case StatePublishFailed, StateReadFailed:
			s.Failed++
			s.Failures = append(s.Failures, models.FailureRecord{
				Filename:     it.asset.Filename,
				FolderPath:   it.asset.RelativeFolderPath,
				ErrorMessage: it.err.Error(),
			})
		}
	}

	return s
}

func uploadRecord(it *item) models.UploadRecord {
	rec := models.UploadRecord{
		Filename:   it.asset.Filename,
		FolderPath: it.asset.RelativeFolderPath,
		Category:   it.result.Category,
		Tags:       it.result.Tags,
		AltText:    it.result.AltText,
		Confidence: it.result.Confidence,
	}
	if it.country != nil {
		rec.Country = &it.country.Name
		rec.CountryCode = &it.country.ISOCode
	}
	if it.state == StatePublished {
		receipt := it.receipt
		rec.RemoteAssetID = &receipt.AssetID
		rec.RemoteURL = &receipt.PublicURL
		rec.RemoteDocID = &receipt.DocumentID
	}
	return rec
}

// report prints one progress line for a finished image. Lines are written
// as images finish and numbered by discovery position.
func (r *Runner) report(it *item, total int) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "[%d/%d] %s", it.index+1, total, it.asset.RelativePath())
	if it.cacheHit {
		b.WriteString(" (cached)")
	}

	switch it.state {
	case StateDryRunRecorded:
		fmt.Fprintf(&b, " %s [%s] ✓", it.result.Category, strings.Join(it.result.Tags, ", "))
	case StatePublished:
		if it.reused {
			b.WriteString(" (already published)")
		}
		fmt.Fprintf(&b, " ✓ %s", it.receipt.DocumentID)
	default:
		fmt.Fprintf(&b, " ✗ %v", it.err)
	}

	fmt.Fprintln(r.opts.Progress, b.String())
}

// PrintSummary writes the end-of-run totals and every failure
func PrintSummary(w io.Writer, s *Summary, dryRun bool) {
	fmt.Fprintln(w, "\n========================================")
	fmt.Fprintln(w, "Ingest Summary")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Images Found:       %d\n", s.Discovered)
	fmt.Fprintf(w, "Cache Hits:         %d\n", s.CacheHits)
	fmt.Fprintf(w, "Classified:         %d\n", s.Classified)
	fmt.Fprintf(w, "Fallbacks:          %d\n", s.Fallbacks)
	if dryRun {
		fmt.Fprintf(w, "Dry Run Records:    %d\n", s.DryRunRecorded)
	} else {
		fmt.Fprintf(w, "Published:          %d\n", s.Published)
		fmt.Fprintf(w, "Already Published:  %d\n", s.PublishReused)
	}
	fmt.Fprintf(w, "Failed:             %d\n", s.Failed)
	fmt.Fprintf(w, "Classifier Calls:   %d\n", s.ClassifierCalls)
	fmt.Fprintf(w, "Duration:           %s\n", ledger.FormatDuration(s.Duration))

	if len(s.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Failures:")
		for _, f := range s.Failures {
			path := f.Filename
			if f.FolderPath != "" {
				path = f.FolderPath + "/" + f.Filename
			}
			fmt.Fprintf(w, "  %s: %s\n", path, f.ErrorMessage)
		}
	}
	fmt.Fprintln(w, "========================================")
}
