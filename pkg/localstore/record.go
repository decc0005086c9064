package localstore

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"time"
)

// Op is the kind of change a record describes
type Op byte

const (
	// OpSet stores a value under a key
	OpSet Op = 1

	// OpDelete removes a key
	OpDelete Op = 2
)

const (
	// recordHeaderSize is the fixed header length.
	// Layout: Seq(8) + Op(1) + Reserved(3) + KeyLen(4) + ValLen(4) + Timestamp(8)
	recordHeaderSize = 28

	// maxFieldLen bounds key and value lengths read back from disk
	maxFieldLen = 64 << 20
)

// record is one framed change in the log
type record struct {
	Seq       uint64
	Op        Op
	Key       string
	Value     []byte
	Timestamp time.Time
}

// encode serializes the record as [Header][Key][Value][CRC32]
func (r *record) encode() []byte {
	keyLen := len(r.Key)
	valLen := len(r.Value)
	buf := make([]byte, recordHeaderSize+keyLen+valLen+4)

	binary.LittleEndian.PutUint64(buf[0:8], r.Seq)
	buf[8] = byte(r.Op)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(keyLen))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(valLen))
	binary.LittleEndian.PutUint64(buf[20:28], uint64(r.Timestamp.Unix()))

	off := recordHeaderSize
	copy(buf[off:], r.Key)
	off += keyLen
	copy(buf[off:], r.Value)
	off += valLen

	binary.LittleEndian.PutUint32(buf[off:], crc32.ChecksumIEEE(buf[:off]))
	return buf
}

// size returns the encoded length of the record
func (r *record) size() int64 {
	return int64(recordHeaderSize + len(r.Key) + len(r.Value) + 4)
}

// readRecord reads the next record from rd. It returns io.EOF at a clean
// end, ErrTruncated for a partial record and ErrCorrupted for a bad checksum
// or unknown op.
func readRecord(rd io.Reader) (*record, error) {
	header := make([]byte, recordHeaderSize)
	n, err := io.ReadFull(rd, header)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		if n > 0 {
			return nil, ErrTruncated
		}
		return nil, err
	}

	keyLen := binary.LittleEndian.Uint32(header[12:16])
	valLen := binary.LittleEndian.Uint32(header[16:20])
	if keyLen > maxFieldLen || valLen > maxFieldLen {
		return nil, ErrCorrupted
	}

	data := make([]byte, recordHeaderSize+int(keyLen)+int(valLen)+4)
	copy(data, header)
	if _, err := io.ReadFull(rd, data[recordHeaderSize:]); err != nil {
		return nil, ErrTruncated
	}

	end := len(data) - 4
	if binary.LittleEndian.Uint32(data[end:]) != crc32.ChecksumIEEE(data[:end]) {
		return nil, ErrCorrupted
	}

	r := &record{
		Seq:       binary.LittleEndian.Uint64(data[0:8]),
		Op:        Op(data[8]),
		Timestamp: time.Unix(int64(binary.LittleEndian.Uint64(data[20:28])), 0),
	}
	if r.Op != OpSet && r.Op != OpDelete {
		return nil, ErrCorrupted
	}

	off := recordHeaderSize
	r.Key = string(data[off : off+int(keyLen)])
	off += int(keyLen)
	if valLen > 0 {
		r.Value = make([]byte, valLen)
		copy(r.Value, data[off:off+int(valLen)])
	}
	return r, nil
}

// String returns a human-readable representation of the record
func (r *record) String() string {
	op := "UNKNOWN"
	switch r.Op {
	case OpSet:
		op = "SET"
	case OpDelete:
		op = "DELETE"
	}
	return fmt.Sprintf("record[seq=%d op=%s key=%q len=%d]", r.Seq, op, r.Key, len(r.Value))
}
