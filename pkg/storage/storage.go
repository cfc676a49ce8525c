// Package storage keeps a journal of conversion runs in a pebble database.
//
// Every run is keyed by a KSUID, so runs sort by start time. Keys:
//
//	run/<ksuid>               -> RunRecord
//	file/<ksuid>/<source>     -> FileRecord
//
// Values are CBOR encoded.
package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/fxamacker/cbor/v2"
	"github.com/segmentio/ksuid"
)

var (
	runPrefix  = []byte("run/")
	filePrefix = []byte("file/")
)

// ErrRunNotFound is returned when a run ID has no record.
var ErrRunNotFound = errors.New("run not found")

// RunRecord summarizes one conversion run.
type RunRecord struct {
	ID              ksuid.KSUID   `cbor:"id"`
	Input           string        `cbor:"input"`
	Target          string        `cbor:"target"`
	Started         time.Time     `cbor:"started"`
	Duration        time.Duration `cbor:"duration"`
	Converted       int           `cbor:"converted"`
	Skipped         int           `cbor:"skipped"`
	Failed          int           `cbor:"failed"`
	ChunksConverted int           `cbor:"chunks_converted"`
	ChunksDropped   int           `cbor:"chunks_dropped"`
	BytesRead       int64         `cbor:"bytes_read"`
	BytesWritten    int64         `cbor:"bytes_written"`
}

// FileRecord is the outcome of one file within a run.
type FileRecord struct {
	Source       string `cbor:"source"`
	Output       string `cbor:"output,omitempty"`
	Status       string `cbor:"status"`
	Chunks       int    `cbor:"chunks"`
	Dropped      int    `cbor:"dropped"`
	BytesRead    int64  `cbor:"bytes_read"`
	BytesWritten int64  `cbor:"bytes_written"`
	Error        string `cbor:"error,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("storage: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("storage: CBOR decoder initialization failed: " + err.Error())
	}
}

// Journal records conversion runs. It is safe for concurrent use.
type Journal struct {
	db *pebble.DB
}

// OpenJournal opens or creates the journal database in dir.
func OpenJournal(dir string) (*Journal, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// NewRunID returns a fresh time-ordered run identifier.
func NewRunID() ksuid.KSUID {
	return ksuid.New()
}

// RecordFile stores the outcome of one file.
func (j *Journal) RecordFile(run ksuid.KSUID, rec FileRecord) error {
	data, err := encMode.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode file record: %w", err)
	}
	return j.db.Set(fileKey(run, rec.Source), data, pebble.NoSync)
}

// FinishRun stores the run summary and flushes the journal.
func (j *Journal) FinishRun(rec RunRecord) error {
	data, err := encMode.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode run record: %w", err)
	}
	return j.db.Set(runKey(rec.ID), data, pebble.Sync)
}

// Run returns one run record.
func (j *Journal) Run(id ksuid.KSUID) (*RunRecord, error) {
	data, closer, err := j.db.Get(runKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}
	defer closer.Close()

	var rec RunRecord
	if err := decMode.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", id, err)
	}
	return &rec, nil
}

// Runs returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (j *Journal) Runs(limit int) ([]RunRecord, error) {
	iter, err := j.db.NewIter(prefixOptions(runPrefix))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var runs []RunRecord
	for valid := iter.Last(); valid; valid = iter.Prev() {
		var rec RunRecord
		if err := decMode.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode run record: %w", err)
		}
		runs = append(runs, rec)
		if limit > 0 && len(runs) == limit {
			break
		}
	}
	return runs, iter.Error()
}

// Files returns the file records of a run ordered by source path.
func (j *Journal) Files(run ksuid.KSUID) ([]FileRecord, error) {
	prefix := append(append([]byte{}, filePrefix...), run.Bytes()...)
	prefix = append(prefix, '/')

	iter, err := j.db.NewIter(prefixOptions(prefix))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var files []FileRecord
	for valid := iter.First(); valid; valid = iter.Next() {
		var rec FileRecord
		if err := decMode.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode file record: %w", err)
		}
		files = append(files, rec)
	}
	return files, iter.Error()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func runKey(id ksuid.KSUID) []byte {
	return append(append([]byte{}, runPrefix...), id.Bytes()...)
}

func fileKey(run ksuid.KSUID, source string) []byte {
	key := append(append([]byte{}, filePrefix...), run.Bytes()...)
	key = append(key, '/')
	return append(key, source...)
}

func prefixOptions(prefix []byte) *pebble.IterOptions {
	upper := append([]byte{}, prefix...)
	upper[len(upper)-1]++
	return &pebble.IterOptions{LowerBound: prefix, UpperBound: upper}
}
