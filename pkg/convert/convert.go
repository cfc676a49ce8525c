// Package convert drives bulk conversion of region files between the Anvil
// and Linear formats.
//
// A Converter discovers region files, converts each one in a bounded pool
// of workers and collects per-file results into a Summary. One file failing
// never stops the others; only problems with the output root abort a run.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ssargent/lineartools/pkg/anvil"
	"github.com/ssargent/lineartools/pkg/linear"
	"github.com/ssargent/lineartools/pkg/metrics"
	"github.com/ssargent/lineartools/pkg/region"
	"github.com/ssargent/lineartools/pkg/storage"
)

// Options configures a Converter.
type Options struct {
	Target      Format             // Required
	Output      string             // Output root; empty means next to the input
	Threads     int                // Worker count; zero means one per CPU
	LinearLevel int                // zstd level for Linear output
	Anvil       anvil.WriteOptions // Settings for Anvil output
}

// Journal receives the outcome of every file and run.
type Journal interface {
	RecordFile(run ksuid.KSUID, rec storage.FileRecord) error
	FinishRun(rec storage.RunRecord) error
}

// Converter converts region files. It is safe to call Run more than once,
// but not concurrently.
type Converter struct {
	opts    Options
	log     logrus.FieldLogger
	metrics *metrics.Metrics
	journal Journal
}

// Option customizes a Converter.
type Option func(*Converter)

// WithLogger sets the logger. Defaults to the standard logrus logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Converter) { c.log = log }
}

// WithMetrics records conversion statistics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Converter) { c.metrics = m }
}

// WithJournal records every run in a journal.
func WithJournal(j Journal) Option {
	return func(c *Converter) { c.journal = j }
}

// New returns a Converter for the given options.
func New(opts Options, options ...Option) (*Converter, error) {
	switch opts.Target {
	case Anvil, Linear:
	default:
		return nil, fmt.Errorf("convert: no target format")
	}
	if opts.Threads < 0 {
		return nil, fmt.Errorf("convert: negative thread count %d", opts.Threads)
	}
	if opts.Threads == 0 {
		opts.Threads = runtime.NumCPU()
	}
	if opts.LinearLevel == 0 {
		opts.LinearLevel = linear.DefaultLevel
	}

	c := &Converter{opts: opts, log: logrus.StandardLogger()}
	for _, option := range options {
		option(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.NewMetrics()
	}
	return c, nil
}

// Metrics returns the collectors the converter records into.
func (c *Converter) Metrics() *metrics.Metrics {
	return c.metrics
}

// Run converts every region file under input. Per-file failures are in the
// Summary; the error is set when the run could not start or ctx was
// cancelled. Cancelling ctx stops new files from being scheduled while
// running ones finish.
func (c *Converter) Run(ctx context.Context, input string) (*Summary, error) {
	started := time.Now()

	info, err := os.Stat(input)
	if err != nil {
		return nil, &IOError{Op: "stat", Path: input, Err: err}
	}
	root := input
	if !info.IsDir() {
		root = filepath.Dir(input)
	}
	outRoot := c.opts.Output
	if outRoot == "" {
		outRoot = root
	}
	if err := os.MkdirAll(outRoot, 0755); err != nil {
		return nil, &IOError{Op: "mkdir", Path: outRoot, Err: err}
	}

	files, err := Discover(input)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		RunID:  storage.NewRunID(),
		Target: c.opts.Target,
	}
	log := c.log.WithFields(logrus.Fields{
		"run":    summary.RunID.String(),
		"target": c.opts.Target.String(),
	})
	log.WithField("files", len(files)).Infof("converting %s", input)

	conflicts := claimOutputs(root, outRoot, files, c.opts.Target)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(c.opts.Threads)

	for _, path := range files {
		if ctx.Err() != nil {
			log.Warn("conversion cancelled, waiting for running files")
			break
		}
		path := path
		g.Go(func() error {
			var res FileResult
			if conflict, ok := conflicts[path]; ok {
				res = FileResult{Source: path}.fail(conflict, time.Now())
			} else {
				res = c.convertFile(root, outRoot, path, log)
			}
			c.record(summary.RunID, res, log)

			mu.Lock()
			summary.Files = append(summary.Files, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	summary.Duration = time.Since(started)
	summary.tally()
	c.finish(input, started, summary, log)

	return summary, ctx.Err()
}

// ConvertFile converts a single file outside of a run.
func (c *Converter) ConvertFile(path string) FileResult {
	root := filepath.Dir(path)
	outRoot := c.opts.Output
	if outRoot == "" {
		outRoot = root
	}
	return c.convertFile(root, outRoot, path, c.log)
}

func (c *Converter) convertFile(root, outRoot, path string, log logrus.FieldLogger) FileResult {
	start := time.Now()
	defer c.metrics.Begin()()

	res := FileResult{Source: path}
	log = log.WithField("path", path)

	coords, err := region.ParseFileName(path)
	if err != nil {
		return res.fail(err, start)
	}

	info, err := os.Stat(path)
	if err != nil {
		return res.fail(&IOError{Op: "stat", Path: path, Err: err}, start)
	}
	if info.Size() == 0 {
		return res.skip("empty file", start)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return res.fail(&IOError{Op: "read", Path: path, Err: err}, start)
	}
	res.BytesRead = int64(len(data))

	source := DetectFormat(path, data)
	if source == c.opts.Target {
		return res.skip("already "+source.String(), start)
	}

	r, dropped, err := read(source, path, data, coords, info.ModTime())
	if err != nil {
		return res.fail(err, start)
	}
	for _, chunkErr := range dropped {
		log.WithFields(logrus.Fields{
			"chunk_x": chunkErr.ChunkX,
			"chunk_z": chunkErr.ChunkZ,
		}).WithError(chunkErr.Err).Warn("dropping chunk")
	}
	res.Chunks = r.Len()
	res.Dropped = len(dropped)

	res.Output = outputPath(root, outRoot, path, coords, c.opts.Target)
	outDir := filepath.Dir(res.Output)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return res.fail(&IOError{Op: "mkdir", Path: outDir, Err: err}, start)
	}

	written, err := c.write(r, outDir, res.Output, info.ModTime())
	if err != nil {
		return res.fail(err, start)
	}
	res.BytesWritten = written

	res.Status = metrics.StatusConverted
	res.Duration = time.Since(start)
	log.WithFields(logrus.Fields{
		"chunks": res.Chunks,
		"ratio":  fmt.Sprintf("%.1f%%", res.Ratio()),
	}).Info("converted")
	return res
}

// outputPath mirrors path's directory under outRoot and names the file
// canonically for target.
func outputPath(root, outRoot, path string, coords region.Coords, target Format) string {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil {
		rel = "."
	}
	return filepath.Join(outRoot, rel, region.FileName(coords, target.Extension()))
}

// claimOutputs finds inputs of the same format that would be written to the
// same output path, such as r.0.0.mca and r.00.0.mca. One input per path
// keeps it: the canonically named one, else the first in path order. The
// others are returned with the error they fail with.
func claimOutputs(root, outRoot string, files []string, target Format) map[string]*ConflictError {
	type claimant struct {
		path      string
		canonical bool
	}
	var keys []string
	groups := make(map[string][]claimant)
	for _, path := range files {
		coords, err := region.ParseFileName(path)
		if err != nil {
			continue
		}
		ext := region.Extension(path)
		key := ext + "\x00" + outputPath(root, outRoot, path, coords, target)
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], claimant{
			path:      path,
			canonical: filepath.Base(path) == region.FileName(coords, ext),
		})
	}

	conflicts := make(map[string]*ConflictError)
	for _, key := range keys {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		owner := group[0]
		for _, cl := range group {
			if cl.canonical {
				owner = cl
				break
			}
		}
		coords, _ := region.ParseFileName(owner.path)
		output := outputPath(root, outRoot, owner.path, coords, target)
		for _, cl := range group {
			if cl.path != owner.path {
				conflicts[cl.path] = &ConflictError{Path: cl.path, Output: output, Owner: owner.path}
			}
		}
	}
	return conflicts
}

func read(source Format, path string, data []byte, coords region.Coords, mtime time.Time) (*region.Region, []*region.ChunkError, error) {
	var (
		r       *region.Region
		dropped []*region.ChunkError
		err     error
	)
	switch source {
	case Anvil:
		r, dropped, err = anvil.Read(data, anvil.ReadOptions{
			Coords:   coords,
			ModTime:  uint64(mtime.Unix()),
			External: anvil.DirSource(filepath.Dir(path)),
		})
	case Linear:
		r, _, err = linear.Read(data, coords)
	default:
		err = fmt.Errorf("unsupported source format %s", source)
	}

	var formatErr *region.FormatError
	if errors.As(err, &formatErr) {
		formatErr.Path = path
	}
	return r, dropped, err
}

// write serializes the region in the target format and stores it, overflow
// files first. It returns the number of bytes written.
func (c *Converter) write(r *region.Region, outDir, output string, mtime time.Time) (int64, error) {
	switch c.opts.Target {
	case Linear:
		data, err := linear.Write(r, c.opts.LinearLevel)
		if err != nil {
			return 0, err
		}
		return int64(len(data)), writeFileAtomic(output, data, mtime)

	case Anvil:
		out, err := anvil.Write(r, c.opts.Anvil)
		if err != nil {
			return 0, err
		}
		var written int64
		for _, ext := range out.External {
			if err := writeFileAtomic(filepath.Join(outDir, ext.Name), ext.Data, mtime); err != nil {
				return written, err
			}
			written += int64(len(ext.Data))
		}
		written += int64(len(out.Data))
		return written, writeFileAtomic(output, out.Data, mtime)

	default:
		return 0, fmt.Errorf("unsupported target format %s", c.opts.Target)
	}
}

func (c *Converter) record(run ksuid.KSUID, res FileResult, log logrus.FieldLogger) {
	c.metrics.RecordFile(res.Status, c.opts.Target.String(), res.Duration)
	c.metrics.RecordChunks(res.Chunks, res.Dropped)
	c.metrics.RecordBytes(res.BytesRead, res.BytesWritten)

	switch res.Status {
	case metrics.StatusFailed:
		log.WithField("path", res.Source).WithError(res.Err).Error("conversion failed")
	case metrics.StatusSkipped:
		log.WithField("path", res.Source).Debugf("skipped: %s", res.Reason)
	}

	if c.journal == nil {
		return
	}
	if err := c.journal.RecordFile(run, res.record()); err != nil {
		log.WithError(err).Warn("failed to journal file result")
	}
}

func (c *Converter) finish(input string, started time.Time, s *Summary, log logrus.FieldLogger) {
	log.WithFields(logrus.Fields{
		"converted":      s.Converted,
		"skipped":        s.Skipped,
		"failed":         s.Failed,
		"chunks":         s.ChunksConverted,
		"chunks_dropped": s.ChunksDropped,
		"duration":       s.Duration.Round(time.Millisecond).String(),
	}).Info(s.String())

	if c.journal == nil {
		return
	}
	err := c.journal.FinishRun(storage.RunRecord{
		ID:              s.RunID,
		Input:           input,
		Target:          s.Target.String(),
		Started:         started,
		Duration:        s.Duration,
		Converted:       s.Converted,
		Skipped:         s.Skipped,
		Failed:          s.Failed,
		ChunksConverted: s.ChunksConverted,
		ChunksDropped:   s.ChunksDropped,
		BytesRead:       s.BytesRead,
		BytesWritten:    s.BytesWritten,
	})
	if err != nil {
		log.WithError(err).Warn("failed to journal run")
	}
}

// sortResults orders file results by source path.
func sortResults(files []FileResult) {
	sort.Slice(files, func(i, j int) bool { return files[i].Source < files[j].Source })
}
