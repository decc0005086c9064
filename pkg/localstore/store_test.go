package localstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T, opts Options) (*File, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slots.log")
	f, err := Open(path, opts)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	return f, path
}

func TestRecordEncodeDecode(t *testing.T) {
	r := &record{Seq: 7, Op: OpSet, Key: "versions:resume:1", Value: []byte(`{"v":1}`), Timestamp: time.Unix(1700000000, 0)}

	got, err := readRecord(bytesReader(r.encode()))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Seq != 7 || got.Op != OpSet || got.Key != r.Key || string(got.Value) != string(r.Value) {
		t.Errorf("decoded %s, want %s", got, r)
	}
	if !got.Timestamp.Equal(r.Timestamp) {
		t.Errorf("timestamp mismatch: got %v, want %v", got.Timestamp, r.Timestamp)
	}
}

func TestRecordCorruption(t *testing.T) {
	r := &record{Seq: 1, Op: OpSet, Key: "k", Value: []byte("value")}
	data := r.encode()
	data[recordHeaderSize+2] ^= 0xFF

	if _, err := readRecord(bytesReader(data)); err != ErrCorrupted {
		t.Errorf("expected ErrCorrupted, got %v", err)
	}

	if _, err := readRecord(bytesReader(r.encode()[:recordHeaderSize+1])); err != ErrTruncated {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}

func TestFileSetGetDelete(t *testing.T) {
	f, _ := openTemp(t, Options{})
	defer f.Close()

	if _, ok := f.Get("missing"); ok {
		t.Fatal("expected missing key")
	}
	if err := f.Set("a", []byte("1")); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := f.Set("a", []byte("2")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	v, ok := f.Get("a")
	if !ok || string(v) != "2" {
		t.Errorf("got %q, want %q", v, "2")
	}

	v[0] = 'x'
	if v2, _ := f.Get("a"); string(v2) != "2" {
		t.Error("Get must return a copy")
	}

	if err := f.Delete("a"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok := f.Get("a"); ok {
		t.Error("key should be gone after delete")
	}
	if err := f.Delete("never-set"); err != nil {
		t.Errorf("deleting absent key: %v", err)
	}
	if err := f.Set("", []byte("x")); err != ErrEmptyKey {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
}

func TestFileKeysByPrefix(t *testing.T) {
	f, _ := openTemp(t, Options{})
	defer f.Close()

	for _, k := range []string{"versions:resume:2", "prefs:letterhead", "versions:cover_letter:9", "versions:resume:1"} {
		if err := f.Set(k, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}

	keys := f.Keys("versions:")
	want := []string{"versions:cover_letter:9", "versions:resume:1", "versions:resume:2"}
	if len(keys) != len(want) {
		t.Fatalf("got %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %s, want %s", i, keys[i], want[i])
		}
	}
}

func TestFileReplayAfterReopen(t *testing.T) {
	f, path := openTemp(t, Options{})
	f.Set("keep", []byte("yes"))
	f.Set("drop", []byte("no"))
	f.Delete("drop")
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f2, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer f2.Close()

	if v, ok := f2.Get("keep"); !ok || string(v) != "yes" {
		t.Errorf("keep = %q, %v", v, ok)
	}
	if _, ok := f2.Get("drop"); ok {
		t.Error("deleted key came back after replay")
	}
	if info := f2.Recovery(); info.Records != 3 || info.Discarded != 0 {
		t.Errorf("unexpected recovery info %+v", info)
	}

	// Writes after reopen continue the sequence
	if err := f2.Set("later", []byte("1")); err != nil {
		t.Fatal(err)
	}
}

func TestFileTruncatesDamagedTail(t *testing.T) {
	f, path := openTemp(t, Options{})
	f.Set("first", []byte("one"))
	f.Set("second", []byte("two"))
	goodSize := f.Size()
	f.Close()

	// Simulate a crash mid-write
	fd, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatal(err)
	}
	partial := (&record{Seq: 3, Op: OpSet, Key: "third", Value: []byte("three")}).encode()
	fd.Write(partial[:len(partial)-3])
	fd.Close()

	f2, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("open with damaged tail should succeed: %v", err)
	}
	defer f2.Close()

	if f2.Len() != 2 {
		t.Errorf("expected 2 keys, got %d", f2.Len())
	}
	if f2.Size() != goodSize {
		t.Errorf("size = %d, want %d", f2.Size(), goodSize)
	}
	info := f2.Recovery()
	if info.Discarded == 0 || info.Cause != ErrTruncated {
		t.Errorf("unexpected recovery info %+v", info)
	}

	if err := f2.Set("third", []byte("3")); err != nil {
		t.Fatal(err)
	}
	f2.Close()

	f3, err := Open(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer f3.Close()
	if v, ok := f3.Get("third"); !ok || string(v) != "3" {
		t.Errorf("record appended after truncation was lost: %q %v", v, ok)
	}
}

func TestFileCompact(t *testing.T) {
	f, path := openTemp(t, Options{CompactThreshold: -1})
	defer f.Close()

	for i := 0; i < 50; i++ {
		f.Set("hot", []byte("value-that-keeps-changing"))
	}
	f.Set("cold", []byte("c"))
	before := f.Size()

	if err := f.Compact(); err != nil {
		t.Fatalf("compact failed: %v", err)
	}
	if f.Size() >= before {
		t.Errorf("compaction did not shrink log: %d >= %d", f.Size(), before)
	}
	if err := f.Set("after", []byte("a")); err != nil {
		t.Fatal(err)
	}
	f.Close()

	f2, err := Open(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer f2.Close()
	for _, k := range []string{"hot", "cold", "after"} {
		if _, ok := f2.Get(k); !ok {
			t.Errorf("key %s lost by compaction", k)
		}
	}
	if _, err := os.Stat(path + ".compact"); !os.IsNotExist(err) {
		t.Error("temporary compaction file left behind")
	}
}

func TestFileAutoCompact(t *testing.T) {
	f, _ := openTemp(t, Options{CompactThreshold: 512})
	defer f.Close()

	for i := 0; i < 100; i++ {
		if err := f.Set("k", []byte("0123456789")); err != nil {
			t.Fatal(err)
		}
	}
	if f.Size() > 1024 {
		t.Errorf("log grew to %d bytes despite auto-compaction", f.Size())
	}
}

// faultyFile fails the next Write after passing through limit bytes, or the
// next Sync, then behaves like the wrapped file again
type faultyFile struct {
	logFile
	limit     int
	failWrite bool
	failSync  bool
}

var errDiskFull = errors.New("disk full")

func (ff *faultyFile) Write(p []byte) (int, error) {
	if !ff.failWrite {
		return ff.logFile.Write(p)
	}
	ff.failWrite = false
	n, _ := ff.logFile.Write(p[:ff.limit])
	return n, errDiskFull
}

func (ff *faultyFile) Sync() error {
	if !ff.failSync {
		return ff.logFile.Sync()
	}
	ff.failSync = false
	return errDiskFull
}

func TestFileRollsBackTornWrite(t *testing.T) {
	f, path := openTemp(t, Options{})
	if err := f.Set("first", []byte("one")); err != nil {
		t.Fatal(err)
	}
	goodSize := f.Size()

	f.fd = &faultyFile{logFile: f.fd, limit: 10, failWrite: true}
	if err := f.Set("torn", []byte("lost")); !errors.Is(err, errDiskFull) {
		t.Fatalf("expected disk full error, got %v", err)
	}
	if f.Size() != goodSize {
		t.Errorf("size = %d after failed write, want %d", f.Size(), goodSize)
	}
	if _, ok := f.Get("torn"); ok {
		t.Error("failed write should not be visible")
	}

	if err := f.Set("second", []byte("two")); err != nil {
		t.Fatalf("write after rollback failed: %v", err)
	}
	f.Close()

	f2, err := Open(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer f2.Close()

	if v, ok := f2.Get("second"); !ok || string(v) != "two" {
		t.Errorf("second = %q, %v after reopen", v, ok)
	}
	if _, ok := f2.Get("first"); !ok {
		t.Error("first lost after reopen")
	}
	if _, ok := f2.Get("torn"); ok {
		t.Error("torn record came back after reopen")
	}
	if info := f2.Recovery(); info.Records != 2 || info.Discarded != 0 {
		t.Errorf("unexpected recovery info %+v", info)
	}
}

func TestFileRollsBackFailedSync(t *testing.T) {
	f, path := openTemp(t, Options{})
	f.Set("first", []byte("one"))
	goodSize := f.Size()

	f.fd = &faultyFile{logFile: f.fd, failSync: true}
	if err := f.Set("unsynced", []byte("x")); !errors.Is(err, errDiskFull) {
		t.Fatalf("expected disk full error, got %v", err)
	}
	if f.Size() != goodSize {
		t.Errorf("size = %d after failed sync, want %d", f.Size(), goodSize)
	}
	if err := f.Set("second", []byte("two")); err != nil {
		t.Fatal(err)
	}
	f.Close()

	f2, err := Open(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer f2.Close()

	if _, ok := f2.Get("unsynced"); ok {
		t.Error("record with failed sync came back after reopen")
	}
	if f2.Len() != 2 || f2.Recovery().Discarded != 0 {
		t.Errorf("len = %d, recovery %+v", f2.Len(), f2.Recovery())
	}
}

func TestFileClosed(t *testing.T) {
	f, _ := openTemp(t, Options{})
	f.Close()

	if err := f.Set("a", nil); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestMemorySlots(t *testing.T) {
	var s Slots = NewMemory()
	s.Set("a:1", []byte("x"))
	s.Set("b:1", []byte("y"))

	if keys := s.Keys("a:"); len(keys) != 1 || keys[0] != "a:1" {
		t.Errorf("unexpected keys %v", keys)
	}
	s.Delete("a:1")
	if _, ok := s.Get("a:1"); ok {
		t.Error("delete failed")
	}
}
