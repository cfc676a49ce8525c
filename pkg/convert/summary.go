package convert

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/lineartools/pkg/metrics"
	"github.com/ssargent/lineartools/pkg/storage"
)

// FileResult is the outcome of converting one file.
type FileResult struct {
	Source       string
	Output       string
	Status       string // metrics.StatusConverted, StatusSkipped or StatusFailed
	Reason       string // Why the file was skipped
	Err          error  // Why the file failed
	Chunks       int
	Dropped      int
	BytesRead    int64
	BytesWritten int64
	Duration     time.Duration
}

func (r FileResult) fail(err error, start time.Time) FileResult {
	r.Status = metrics.StatusFailed
	r.Err = err
	r.Duration = time.Since(start)
	return r
}

func (r FileResult) skip(reason string, start time.Time) FileResult {
	r.Status = metrics.StatusSkipped
	r.Reason = reason
	r.Duration = time.Since(start)
	return r
}

// Ratio returns the output size as a percentage of the input size.
func (r FileResult) Ratio() float64 {
	if r.BytesRead == 0 {
		return 0
	}
	return float64(r.BytesWritten) / float64(r.BytesRead) * 100
}

func (r FileResult) record() storage.FileRecord {
	rec := storage.FileRecord{
		Source:       r.Source,
		Output:       r.Output,
		Status:       r.Status,
		Chunks:       r.Chunks,
		Dropped:      r.Dropped,
		BytesRead:    r.BytesRead,
		BytesWritten: r.BytesWritten,
	}
	switch {
	case r.Err != nil:
		rec.Error = r.Err.Error()
	case r.Reason != "":
		rec.Error = r.Reason
	}
	return rec
}

// Summary aggregates the results of a run.
type Summary struct {
	RunID           ksuid.KSUID
	Target          Format
	Converted       int
	Skipped         int
	Failed          int
	ChunksConverted int
	ChunksDropped   int
	BytesRead       int64
	BytesWritten    int64
	Duration        time.Duration
	Files           []FileResult // Ordered by source path
}

func (s *Summary) tally() {
	sortResults(s.Files)
	for _, f := range s.Files {
		switch f.Status {
		case metrics.StatusConverted:
			s.Converted++
			s.ChunksConverted += f.Chunks
			s.ChunksDropped += f.Dropped
			s.BytesRead += f.BytesRead
			s.BytesWritten += f.BytesWritten
		case metrics.StatusSkipped:
			s.Skipped++
		case metrics.StatusFailed:
			s.Failed++
		}
	}
}

// AllFailed reports whether there was work and none of it succeeded.
func (s *Summary) AllFailed() bool {
	return s.Failed > 0 && s.Converted == 0 && s.Skipped == 0
}

// Ratio returns the total output size as a percentage of the converted
// input size.
func (s *Summary) Ratio() float64 {
	if s.BytesRead == 0 {
		return 0
	}
	return float64(s.BytesWritten) / float64(s.BytesRead) * 100
}

// Failures returns the failed file results.
func (s *Summary) Failures() []FileResult {
	var failed []FileResult
	for _, f := range s.Files {
		if f.Status == metrics.StatusFailed {
			failed = append(failed, f)
		}
	}
	return failed
}

func (s *Summary) String() string {
	return fmt.Sprintf("%d converted, %d skipped, %d failed, %d chunks dropped; %s -> %s (%.1f%%)",
		s.Converted, s.Skipped, s.Failed, s.ChunksDropped,
		humanize.Bytes(uint64(s.BytesRead)), humanize.Bytes(uint64(s.BytesWritten)), s.Ratio())
}
