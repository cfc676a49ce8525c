package convert

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/lineartools/pkg/anvil"
	"github.com/ssargent/lineartools/pkg/compression"
	"github.com/ssargent/lineartools/pkg/linear"
	"github.com/ssargent/lineartools/pkg/metrics"
	"github.com/ssargent/lineartools/pkg/region"
	"github.com/ssargent/lineartools/pkg/storage"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newConverter(t *testing.T, target Format, output string, options ...Option) *Converter {
	t.Helper()
	options = append([]Option{WithLogger(quietLogger())}, options...)
	c, err := New(Options{
		Target:      target,
		Output:      output,
		Threads:     4,
		LinearLevel: linear.DefaultLevel,
		Anvil:       anvil.DefaultWriteOptions(),
	}, options...)
	require.NoError(t, err)
	return c
}

// writeAnvil writes a region as an Anvil file, overflow files included.
func writeAnvil(t *testing.T, dir string, r *region.Region) string {
	t.Helper()
	out, err := anvil.Write(r, anvil.DefaultWriteOptions())
	require.NoError(t, err)
	for _, ext := range out.External {
		require.NoError(t, os.WriteFile(filepath.Join(dir, ext.Name), ext.Data, 0644))
	}
	path := filepath.Join(dir, region.FileName(region.Coords{X: r.X, Z: r.Z}, region.ExtAnvil))
	require.NoError(t, os.WriteFile(path, out.Data, 0644))
	return path
}

func sampleRegion(t *testing.T, x, z int32, count int) *region.Region {
	t.Helper()
	r := region.New(x, z)
	for i := 0; i < count; i++ {
		cx, cz := region.Local(i * 3)
		payload := bytes.Repeat([]byte{byte(i), 'n', 'b', 't'}, 100+i)
		require.NoError(t, r.Put(region.NewChunk(cx, cz, uint32(1700000000+i), payload)))
	}
	return r
}

type memJournal struct {
	mu    sync.Mutex
	files []storage.FileRecord
	runs  []storage.RunRecord
}

func (j *memJournal) RecordFile(_ ksuid.KSUID, rec storage.FileRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.files = append(j.files, rec)
	return nil
}

func (j *memJournal) FinishRun(rec storage.RunRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs = append(j.runs, rec)
	return nil
}

func TestHelloChunkToLinear(t *testing.T) {
	dir := t.TempDir()
	r := region.New(3, -1)
	require.NoError(t, r.Put(region.NewChunk(0, 0, 1700000000, []byte("hello"))))
	writeAnvil(t, dir, r)

	summary, err := newConverter(t, Linear, "").Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Converted)
	assert.Equal(t, 1, summary.ChunksConverted)

	data, err := os.ReadFile(filepath.Join(dir, "r.3.-1.linear"))
	require.NoError(t, err)

	body, err := compression.DecompressZstd(data[linear.HeaderSize : len(data)-linear.TrailerSize])
	require.NoError(t, err)
	assert.Equal(t, uint32(5), binary.BigEndian.Uint32(body))
	assert.Equal(t, uint32(1700000000), binary.BigEndian.Uint32(body[4:]))
	assert.Equal(t, "hello", string(body[8:13]))
	assert.Equal(t, make([]byte, 4*(region.SlotCount-1)), body[13:])
}

func TestAnvilLinearAnvilRoundTrip(t *testing.T) {
	src := t.TempDir()
	mid := t.TempDir()
	dst := t.TempDir()

	big := make([]byte, 1100*1024)
	_, err := rand.Read(big)
	require.NoError(t, err)

	original := sampleRegion(t, -2, 5, 300)
	require.NoError(t, original.Put(region.NewChunk(31, 31, 42, big)))
	writeAnvil(t, src, original)
	require.FileExists(t, filepath.Join(src, region.ExternalFileName(-2*32+31, 5*32+31)))

	summary, err := newConverter(t, Linear, mid).Run(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Converted, "%+v", summary.Files)

	summary, err = newConverter(t, Anvil, dst).Run(context.Background(), mid)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Converted, "%+v", summary.Files)

	data, err := os.ReadFile(filepath.Join(dst, "r.-2.5.mca"))
	require.NoError(t, err)
	got, dropped, err := anvil.Read(data, anvil.ReadOptions{
		Coords:   region.Coords{X: -2, Z: 5},
		External: anvil.DirSource(dst),
	})
	require.NoError(t, err)
	assert.Empty(t, dropped)
	require.Equal(t, original.Len(), got.Len())

	original.Each(func(index int, c *region.Chunk) {
		other := got.At(index)
		require.NotNil(t, other)
		assert.Equal(t, c.Timestamp, other.Timestamp)
		assert.True(t, bytes.Equal(c.Payload, other.Payload))
	})
}

func TestRunPreservesLayoutAndMtime(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "converted")

	nested := filepath.Join(src, "DIM-1", "region")
	require.NoError(t, os.MkdirAll(nested, 0755))
	path := writeAnvil(t, nested, sampleRegion(t, 0, 0, 5))

	mtime := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	summary, err := newConverter(t, Linear, out).Run(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Converted)

	output := filepath.Join(out, "DIM-1", "region", "r.0.0.linear")
	assert.Equal(t, output, summary.Files[0].Output)
	info, err := os.Stat(output)
	require.NoError(t, err)
	assert.True(t, mtime.Equal(info.ModTime()), "mtime %v", info.ModTime())

	entries, err := os.ReadDir(filepath.Dir(output))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files left behind")
}

func TestRunSkipsAndFailures(t *testing.T) {
	dir := t.TempDir()

	writeAnvil(t, dir, sampleRegion(t, 0, 0, 3))
	writeAnvil(t, dir, sampleRegion(t, 1, 0, 3))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "r.2.0.mca"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "r.3.0.mca"), []byte("short"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "r.4.0.linear"), []byte("not linear either"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "level.dat"), []byte("ignored"), 0644))

	journal := &memJournal{}
	m := metrics.NewMetrics()
	summary, err := newConverter(t, Linear, "", WithJournal(journal), WithMetrics(m)).Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Converted)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 1, summary.Failed)
	assert.False(t, summary.AllFailed())
	assert.Equal(t, 6, summary.ChunksConverted)
	require.Len(t, summary.Files, 5)

	byName := map[string]FileResult{}
	for _, f := range summary.Files {
		byName[filepath.Base(f.Source)] = f
	}
	assert.Equal(t, "empty file", byName["r.2.0.mca"].Reason)
	assert.Equal(t, "already linear", byName["r.4.0.linear"].Reason)

	failed := summary.Failures()
	require.Len(t, failed, 1)
	var formatErr *region.FormatError
	require.True(t, errors.As(failed[0].Err, &formatErr))
	assert.Equal(t, filepath.Join(dir, "r.3.0.mca"), formatErr.Path)
	assert.ErrorIs(t, failed[0].Err, region.ErrTruncated)

	assert.Len(t, journal.files, 5)
	require.Len(t, journal.runs, 1)
	assert.Equal(t, summary.RunID, journal.runs[0].ID)
	assert.Equal(t, 2, journal.runs[0].Converted)
	assert.Equal(t, "linear", journal.runs[0].Target)

	assert.FileExists(t, filepath.Join(dir, "r.0.0.linear"))
	assert.FileExists(t, filepath.Join(dir, "r.1.0.linear"))
	assert.NoFileExists(t, filepath.Join(dir, "r.3.0.linear"))
}

func TestRunAllFailed(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"r.0.0.linear", "r.0.1.linear"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("garbage"), 0644))
	}

	summary, err := newConverter(t, Anvil, "").Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Failed)
	assert.True(t, summary.AllFailed())
}

func TestRunOutputConflicts(t *testing.T) {
	dir := t.TempDir()
	canonical := writeAnvil(t, dir, sampleRegion(t, 0, 0, 2))

	other, err := anvil.Write(sampleRegion(t, 0, 0, 5), anvil.DefaultWriteOptions())
	require.NoError(t, err)
	for _, name := range []string{"r.00.0.mca", "r.+0.0.mca"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), other.Data, 0644))
	}

	summary, err := newConverter(t, Linear, "").Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Converted)
	assert.Equal(t, 2, summary.Failed)

	for _, f := range summary.Failures() {
		var conflict *ConflictError
		require.True(t, errors.As(f.Err, &conflict), "got %T: %v", f.Err, f.Err)
		assert.Equal(t, canonical, conflict.Owner)
		assert.Equal(t, filepath.Join(dir, "r.0.0.linear"), conflict.Output)
	}

	data, err := os.ReadFile(filepath.Join(dir, "r.0.0.linear"))
	require.NoError(t, err)
	r, _, err := linear.Read(data, region.Coords{})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
}

func TestClaimOutputsWithoutCanonicalName(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		filepath.Join(dir, "r.+1.0.mca"),
		filepath.Join(dir, "r.01.0.mca"),
		filepath.Join(dir, "r.1.0.linear"),
		filepath.Join(dir, "r.2.0.mca"),
	}

	conflicts := claimOutputs(dir, dir, files, Linear)
	require.Len(t, conflicts, 1)
	conflict := conflicts[files[1]]
	require.NotNil(t, conflict)
	assert.Equal(t, files[0], conflict.Owner)
	assert.Equal(t, filepath.Join(dir, "r.1.0.linear"), conflict.Output)
}

func TestRunDropsUnsupportedChunk(t *testing.T) {
	dir := t.TempDir()
	path := writeAnvil(t, dir, sampleRegion(t, 0, 0, 3))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	location := binary.BigEndian.Uint32(data[region.Index(3, 0)*4:])
	data[int(location>>8)*anvil.SectorSize+4] = 5
	require.NoError(t, os.WriteFile(path, data, 0644))

	summary, err := newConverter(t, Linear, "").Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Converted)
	assert.Equal(t, 2, summary.ChunksConverted)
	assert.Equal(t, 1, summary.ChunksDropped)
}

func TestRunSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeAnvil(t, dir, sampleRegion(t, 7, 7, 2))

	summary, err := newConverter(t, Linear, "").Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Converted)
	assert.FileExists(t, filepath.Join(dir, "r.7.7.linear"))
}

func TestRunOutputRootFailure(t *testing.T) {
	dir := t.TempDir()
	writeAnvil(t, dir, sampleRegion(t, 0, 0, 1))

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := newConverter(t, Linear, filepath.Join(blocker, "out")).Run(context.Background(), dir)
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "mkdir", ioErr.Op)
}

func TestRunMissingInput(t *testing.T) {
	_, err := newConverter(t, Linear, "").Run(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	writeAnvil(t, dir, sampleRegion(t, 0, 0, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := newConverter(t, Linear, "").Run(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Empty(t, summary.Files)
}

func TestConvertFileBadName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "world.mca")
	require.NoError(t, os.WriteFile(path, make([]byte, anvil.HeaderSize), 0644))

	res := newConverter(t, Linear, "").ConvertFile(path)
	assert.Equal(t, metrics.StatusFailed, res.Status)
	var pathErr *region.PathError
	assert.True(t, errors.As(res.Err, &pathErr))
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{Target: Linear, Threads: -1})
	assert.Error(t, err)

	c, err := New(Options{Target: Anvil})
	require.NoError(t, err)
	assert.Positive(t, c.opts.Threads)
	assert.Equal(t, linear.DefaultLevel, c.opts.LinearLevel)
	assert.NotNil(t, c.Metrics())
}

func TestSummaryRatio(t *testing.T) {
	s := &Summary{BytesRead: 200, BytesWritten: 50}
	assert.InDelta(t, 25.0, s.Ratio(), 0.001)
	assert.Contains(t, s.String(), "25.0%")
	assert.Zero(t, (&Summary{}).Ratio())
	assert.False(t, (&Summary{}).AllFailed())
}
