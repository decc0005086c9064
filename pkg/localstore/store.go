// ABOUTME: Append-only local key-value slots with checksummed records
// ABOUTME: Replays on open, truncates a damaged tail and compacts stale records

package localstore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultCompactThreshold is the log size below which compaction is skipped
	DefaultCompactThreshold = 1 << 20
)

// Slots is a flat key-value namespace. Implementations must be safe for
// concurrent use.
type Slots interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
	Delete(key string) error
	Keys(prefix string) []string
}

// Options configures a File store
type Options struct {
	// CompactThreshold is the minimum log size before automatic compaction.
	// Zero selects DefaultCompactThreshold; negative disables it.
	CompactThreshold int64

	// Logger receives recovery warnings
	Logger zerolog.Logger

	// Now overrides the record timestamp clock
	Now func() time.Time
}

// logFile is the part of *os.File the store works through
type logFile interface {
	io.ReadWriteSeeker
	io.Closer
	Sync() error
	Truncate(size int64) error
	Stat() (os.FileInfo, error)
}

// File stores slots in a single append-only log file and serves reads from
// memory.
type File struct {
	path string
	opts Options

	mu       sync.Mutex
	fd       logFile
	broken   error
	data     map[string][]byte
	seq      uint64
	size     int64
	live     int64
	closed   bool
	recovery RecoveryInfo
}

// RecoveryInfo describes what Open found in an existing log
type RecoveryInfo struct {
	Records   int
	Discarded int64
	Cause     error
}

// Open opens or creates the log at path and replays it. A damaged tail is
// cut off so later appends start from the last good record.
func Open(path string, opts Options) (*File, error) {
	if opts.CompactThreshold == 0 {
		opts.CompactThreshold = DefaultCompactThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	f := &File{path: path, opts: opts, fd: fd, data: make(map[string][]byte)}
	if err := f.replay(); err != nil {
		fd.Close()
		return nil, err
	}
	return f, nil
}

// replay rebuilds the in-memory map from the log
func (f *File) replay() error {
	if _, err := f.fd.Seek(0, io.SeekStart); err != nil {
		return err
	}
	rd := bufio.NewReader(f.fd)

	var good int64
	for {
		r, err := readRecord(rd)
		if err == io.EOF {
			break
		}
		if err != nil {
			f.recovery.Cause = err
			break
		}
		f.apply(r)
		f.recovery.Records++
		good += r.size()
	}

	stat, err := f.fd.Stat()
	if err != nil {
		return err
	}
	if stat.Size() > good {
		f.recovery.Discarded = stat.Size() - good
		f.opts.Logger.Warn().
			Str("path", f.path).
			Int64("good_bytes", good).
			Int64("discarded_bytes", f.recovery.Discarded).
			AnErr("cause", f.recovery.Cause).
			Msg("Discarding damaged store tail")
		if err := f.fd.Truncate(good); err != nil {
			return fmt.Errorf("truncate damaged tail: %w", err)
		}
	}
	if _, err := f.fd.Seek(good, io.SeekStart); err != nil {
		return err
	}
	f.size = good
	return nil
}

// apply folds a record into the in-memory state (caller must hold mu or be replaying)
func (f *File) apply(r *record) {
	if r.Seq > f.seq {
		f.seq = r.Seq
	}
	if old, ok := f.data[r.Key]; ok {
		f.live -= entrySize(r.Key, old)
	}
	switch r.Op {
	case OpSet:
		f.data[r.Key] = r.Value
		f.live += entrySize(r.Key, r.Value)
	case OpDelete:
		delete(f.data, r.Key)
	}
}

func entrySize(key string, value []byte) int64 {
	return int64(recordHeaderSize + len(key) + len(value) + 4)
}

// Recovery reports what Open found while replaying the log
func (f *File) Recovery() RecoveryInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recovery
}

// Get returns a copy of the value stored under key
func (f *File) Get(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.data[key]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

// Set stores value under key
func (f *File) Set(key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	v := make([]byte, len(value))
	copy(v, value)
	return f.write(&record{Op: OpSet, Key: key, Value: v})
}

// Delete removes key. Deleting an absent key is not an error.
func (f *File) Delete(key string) error {
	f.mu.Lock()
	_, ok := f.data[key]
	f.mu.Unlock()
	if !ok {
		return nil
	}
	return f.write(&record{Op: OpDelete, Key: key})
}

// Keys returns the sorted keys that start with prefix
func (f *File) Keys(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored keys
func (f *File) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data)
}

// Size returns the current log size in bytes
func (f *File) Size() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

func (f *File) write(r *record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}

	if f.broken != nil {
		return fmt.Errorf("store unusable after failed rollback: %w", f.broken)
	}

	r.Seq = f.seq + 1
	r.Timestamp = f.opts.Now()

	buf := r.encode()
	if _, err := f.fd.Write(buf); err != nil {
		return f.rollbackNoLock(fmt.Errorf("append record: %w", err))
	}
	if err := f.fd.Sync(); err != nil {
		return f.rollbackNoLock(fmt.Errorf("sync store: %w", err))
	}
	f.size += int64(len(buf))
	f.apply(r)

	if f.shouldCompactNoLock() {
		if err := f.compactNoLock(); err != nil {
			f.opts.Logger.Warn().Err(err).Str("path", f.path).Msg("Store compaction failed")
		}
	}
	return nil
}

// rollbackNoLock cuts the log back to its last complete record after a
// failed append so later records are not stranded behind a torn one (caller
// must hold mu)
func (f *File) rollbackNoLock(cause error) error {
	err := f.fd.Truncate(f.size)
	if err == nil {
		_, err = f.fd.Seek(f.size, io.SeekStart)
	}
	if err != nil {
		f.broken = err
		f.opts.Logger.Error().Err(err).AnErr("cause", cause).Str("path", f.path).Msg("Store rollback failed")
		return errors.Join(cause, fmt.Errorf("roll back partial record: %w", err))
	}
	return cause
}

// shouldCompactNoLock reports whether at least half the log is stale (caller must hold mu)
func (f *File) shouldCompactNoLock() bool {
	if f.opts.CompactThreshold < 0 || f.size < f.opts.CompactThreshold {
		return false
	}
	return f.size > 2*f.live
}

// Compact rewrites the log so it holds one record per live key
func (f *File) Compact() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	return f.compactNoLock()
}

// compactNoLock writes live keys to a temporary file and renames it over
// the log (caller must hold mu)
func (f *File) compactNoLock() error {
	tmpPath := f.path + ".compact"
	tmp, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := bufio.NewWriter(tmp)
	var size int64
	now := f.opts.Now()
	for i, k := range keys {
		r := &record{Seq: uint64(i + 1), Op: OpSet, Key: k, Value: f.data[k], Timestamp: now}
		n, err := w.Write(r.encode())
		size += int64(n)
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return err
		}
	}
	if err := errors.Join(w.Flush(), tmp.Sync()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	f.fd.Close()
	f.fd = tmp
	if _, err := f.fd.Seek(size, io.SeekStart); err != nil {
		return err
	}
	f.seq = uint64(len(keys))
	f.size = size
	f.live = size
	return nil
}

// Close closes the log file
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	return f.fd.Close()
}
