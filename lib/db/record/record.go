package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"github.com/ValentinKolb/kvd/lib/db"
	"hash/crc32"
	"io"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	magicNum      = "KVDAOF\x00\x00" // File format identifier
	formatVersion = 1                // File format version

	// HeaderSize is the size of the file header (magic number + version)
	HeaderSize = len(magicNum) + 1

	prefixSize = 4 + 1 + 4     // crc + op + key length (or key count)
	putSize    = 4 + 8 + 8 + 8 // value length + created + updated + access count
	touchSize  = 8             // access count
	maxBatch   = 1 << 24       // upper bound for keys in one delete batch
)

var (
	ErrBadHeader = errors.New("invalid file header")
	ErrTruncated = errors.New("record truncated")
	ErrChecksum  = errors.New("record checksum mismatch")
	ErrMalformed = errors.New("record malformed")
)

// --------------------------------------------------------------------------
// Record Type
// --------------------------------------------------------------------------

// Op discriminates the record kinds of the data file.
type Op uint8

const (
	OpPut         Op = iota + 1 // insert or update, carries value and metadata
	OpDelete                    // tombstone for one key
	OpTouch                     // new access count of an existing key
	OpDeleteBatch               // tombstones for many keys, applied all or nothing
)

func (o Op) String() string {
	switch o {
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	case OpTouch:
		return "touch"
	case OpDeleteBatch:
		return "delete-batch"
	default:
		return "unknown"
	}
}

// Record is a single entry of the data file.
// Which fields are used depends on Op.
type Record struct {
	Op          Op
	Key         string   // put, delete, touch
	Keys        []string // delete-batch
	Value       []byte   // put
	CreatedAt   int64    // put, unix nanoseconds
	UpdatedAt   int64    // put, unix nanoseconds
	AccessCount uint64   // put, touch
}

// Put creates a put record.
func Put(key string, value []byte, createdAt, updatedAt int64, accessCount uint64) Record {
	return Record{Op: OpPut, Key: key, Value: value, CreatedAt: createdAt, UpdatedAt: updatedAt, AccessCount: accessCount}
}

// Delete creates a tombstone record.
func Delete(key string) Record {
	return Record{Op: OpDelete, Key: key}
}

// Touch creates an access count record.
func Touch(key string, accessCount uint64) Record {
	return Record{Op: OpTouch, Key: key, AccessCount: accessCount}
}

// DeleteBatch creates a tombstone record for many keys.
func DeleteBatch(keys []string) Record {
	return Record{Op: OpDeleteBatch, Keys: keys}
}

func (r Record) String() string {
	switch r.Op {
	case OpDeleteBatch:
		return fmt.Sprintf("Record{Op: %s, Keys: %d}", r.Op, len(r.Keys))
	default:
		return fmt.Sprintf("Record{Op: %s, Key: %q, Value: %d bytes}", r.Op, r.Key, len(r.Value))
	}
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// Size returns the number of bytes Encode produces for r.
func (r Record) Size() int {
	switch r.Op {
	case OpPut:
		return prefixSize + putSize + len(r.Key) + len(r.Value)
	case OpTouch:
		return prefixSize + touchSize + len(r.Key)
	case OpDeleteBatch:
		size := prefixSize
		for _, k := range r.Keys {
			size += 4 + len(k)
		}
		return size
	default:
		return prefixSize + len(r.Key)
	}
}

// AppendTo appends the encoded record to buf and returns the extended buffer.
//
// Layout (little endian):
//
//	crc32 u32 | op u8 | klen u32 | put: vlen u32 | created i64 | updated i64 | access u64 | key | value
//	                             | delete: key
//	                             | touch: access u64 | key
//	crc32 u32 | op u8 | count u32 | count x (klen u32 | key)   (delete-batch)
func (r Record) AppendTo(buf []byte) []byte {
	start := len(buf)
	buf = append(buf, 0, 0, 0, 0, byte(r.Op))

	switch r.Op {
	case OpPut:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(r.Key)))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(r.Value)))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(r.CreatedAt))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(r.UpdatedAt))
		buf = binary.LittleEndian.AppendUint64(buf, r.AccessCount)
		buf = append(buf, r.Key...)
		buf = append(buf, r.Value...)
	case OpTouch:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(r.Key)))
		buf = binary.LittleEndian.AppendUint64(buf, r.AccessCount)
		buf = append(buf, r.Key...)
	case OpDeleteBatch:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(r.Keys)))
		for _, k := range r.Keys {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(k)))
			buf = append(buf, k...)
		}
	default:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(r.Key)))
		buf = append(buf, r.Key...)
	}

	// the checksum covers everything after itself
	binary.LittleEndian.PutUint32(buf[start:start+4], crc32.ChecksumIEEE(buf[start+4:]))
	return buf
}

// Encode returns the encoded record.
func (r Record) Encode() []byte {
	return r.AppendTo(make([]byte, 0, r.Size()))
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

// Decode reads the next record from rd and returns it with the number of bytes consumed.
// It returns io.EOF if rd is exhausted before the first byte of a record,
// ErrTruncated if it ends inside a record, ErrChecksum if the checksum does not match
// and ErrMalformed for impossible field values.
func Decode(rd io.Reader) (Record, int, error) {
	buf := make([]byte, prefixSize, prefixSize+putSize)

	// Read prefix
	if n, err := io.ReadFull(rd, buf); err != nil {
		if err == io.EOF && n == 0 {
			return Record{}, 0, io.EOF
		}
		return Record{}, n, truncated(err)
	}

	op := Op(buf[4])
	count := binary.LittleEndian.Uint32(buf[5:9])

	var rec Record
	var err error

	switch op {
	case OpPut:
		buf, err = readMore(rd, buf, putSize)
		if err != nil {
			return Record{}, len(buf), err
		}
		vlen := binary.LittleEndian.Uint32(buf[9:13])
		if count == 0 || count > db.MaxKeySize || vlen > db.MaxValueSize {
			return Record{}, len(buf), ErrMalformed
		}
		buf, err = readMore(rd, buf, int(count)+int(vlen))
		if err != nil {
			return Record{}, len(buf), err
		}
		body := buf[prefixSize+putSize:]
		value := make([]byte, vlen)
		copy(value, body[count:])
		rec = Record{
			Op:          OpPut,
			Key:         string(body[:count]),
			Value:       value,
			CreatedAt:   int64(binary.LittleEndian.Uint64(buf[13:21])),
			UpdatedAt:   int64(binary.LittleEndian.Uint64(buf[21:29])),
			AccessCount: binary.LittleEndian.Uint64(buf[29:37]),
		}

	case OpTouch:
		if count == 0 || count > db.MaxKeySize {
			return Record{}, len(buf), ErrMalformed
		}
		buf, err = readMore(rd, buf, touchSize+int(count))
		if err != nil {
			return Record{}, len(buf), err
		}
		rec = Record{
			Op:          OpTouch,
			AccessCount: binary.LittleEndian.Uint64(buf[9:17]),
			Key:         string(buf[17:]),
		}

	case OpDelete:
		if count == 0 || count > db.MaxKeySize {
			return Record{}, len(buf), ErrMalformed
		}
		buf, err = readMore(rd, buf, int(count))
		if err != nil {
			return Record{}, len(buf), err
		}
		rec = Record{Op: OpDelete, Key: string(buf[9:])}

	case OpDeleteBatch:
		if count == 0 || count > maxBatch {
			return Record{}, len(buf), ErrMalformed
		}
		keys := make([]string, 0, min(count, 1024))
		for i := uint32(0); i < count; i++ {
			buf, err = readMore(rd, buf, 4)
			if err != nil {
				return Record{}, len(buf), err
			}
			klen := binary.LittleEndian.Uint32(buf[len(buf)-4:])
			if klen == 0 || klen > db.MaxKeySize {
				return Record{}, len(buf), ErrMalformed
			}
			buf, err = readMore(rd, buf, int(klen))
			if err != nil {
				return Record{}, len(buf), err
			}
			keys = append(keys, string(buf[len(buf)-int(klen):]))
		}
		rec = Record{Op: OpDeleteBatch, Keys: keys}

	default:
		return Record{}, len(buf), ErrMalformed
	}

	// Verify checksum
	if binary.LittleEndian.Uint32(buf[:4]) != crc32.ChecksumIEEE(buf[4:]) {
		return Record{}, len(buf), ErrChecksum
	}

	return rec, len(buf), nil
}

// readMore reads n more bytes from rd and appends them to buf.
func readMore(rd io.Reader, buf []byte, n int) ([]byte, error) {
	start := len(buf)
	if cap(buf)-start < n {
		grown := make([]byte, start, start+n)
		copy(grown, buf)
		buf = grown
	}
	buf = buf[:start+n]
	read, err := io.ReadFull(rd, buf[start:])
	if err != nil {
		return buf[:start+read], truncated(err)
	}
	return buf, nil
}

// truncated maps the end-of-input errors of io.ReadFull to ErrTruncated.
func truncated(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrTruncated
	}
	return err
}

// --------------------------------------------------------------------------
// File Header
// --------------------------------------------------------------------------

// WriteHeader writes the file header.
func WriteHeader(w io.Writer) error {
	header := make([]byte, 0, HeaderSize)
	header = append(header, magicNum...)
	header = append(header, formatVersion)
	_, err := w.Write(header)
	return err
}

// ReadHeader reads and verifies the file header.
func ReadHeader(rd io.Reader) error {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(rd, header); err != nil {
		return fmt.Errorf("%w: %v", ErrBadHeader, err)
	}

	if string(header[:len(magicNum)]) != magicNum {
		return fmt.Errorf("%w: magic number mismatch", ErrBadHeader)
	}

	if version := header[len(magicNum)]; version != formatVersion {
		return fmt.Errorf("%w: unsupported version: %d (expected %d)", ErrBadHeader, version, formatVersion)
	}

	return nil
}
