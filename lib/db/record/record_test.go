package record_test

import (
	"bytes"
	"github.com/ValentinKolb/kvd/lib/db/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"testing"
)

func TestRecord_EncodeDecode(t *testing.T) {
	records := []record.Record{
		record.Put("user:1", []byte("alice"), 100, 200, 3),
		record.Put("empty", []byte{}, 1, 1, 0),
		record.Delete("user:1"),
		record.Touch("user:2", 42),
		record.DeleteBatch([]string{"a", "ab", "abc"}),
	}

	var buf bytes.Buffer
	for _, r := range records {
		encoded := r.Encode()
		assert.Len(t, encoded, r.Size(), "size mismatch for %s", r)
		buf.Write(encoded)
	}

	for i, want := range records {
		got, n, err := record.Decode(&buf)
		require.NoError(t, err, "record %d", i)
		assert.Equal(t, want.Size(), n)
		assert.Equal(t, want.Op, got.Op)
		assert.Equal(t, want.Key, got.Key)
		assert.Equal(t, want.Keys, got.Keys)
		assert.Equal(t, len(want.Value), len(got.Value))
		assert.True(t, bytes.Equal(want.Value, got.Value))
		assert.Equal(t, want.CreatedAt, got.CreatedAt)
		assert.Equal(t, want.UpdatedAt, got.UpdatedAt)
		assert.Equal(t, want.AccessCount, got.AccessCount)
	}

	_, n, err := record.Decode(&buf)
	assert.Equal(t, io.EOF, err)
	assert.Zero(t, n)
}

func TestRecord_Truncated(t *testing.T) {
	encoded := record.Put("key", []byte("value"), 1, 2, 0).Encode()

	for cut := 1; cut < len(encoded); cut++ {
		_, _, err := record.Decode(bytes.NewReader(encoded[:cut]))
		assert.ErrorIs(t, err, record.ErrTruncated, "cut at %d", cut)
	}
}

func TestRecord_Checksum(t *testing.T) {
	encoded := record.Put("key", []byte("value"), 1, 2, 0).Encode()

	// flip one bit of the value
	encoded[len(encoded)-1] ^= 0x01

	_, n, err := record.Decode(bytes.NewReader(encoded))
	assert.ErrorIs(t, err, record.ErrChecksum)
	assert.Equal(t, len(encoded), n)
}

func TestRecord_Malformed(t *testing.T) {
	// unknown op
	encoded := record.Delete("key").Encode()
	encoded[4] = 0xff
	_, _, err := record.Decode(bytes.NewReader(encoded))
	assert.ErrorIs(t, err, record.ErrMalformed)

	// key length above the limit
	encoded = record.Delete("key").Encode()
	encoded[5], encoded[6] = 0xff, 0xff
	_, _, err = record.Decode(bytes.NewReader(encoded))
	assert.ErrorIs(t, err, record.ErrMalformed)
}

func TestHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, record.WriteHeader(&buf))
	assert.Equal(t, record.HeaderSize, buf.Len())
	require.NoError(t, record.ReadHeader(&buf))

	err := record.ReadHeader(bytes.NewReader([]byte("NOTAKVDBFILE")))
	assert.ErrorIs(t, err, record.ErrBadHeader)

	err = record.ReadHeader(bytes.NewReader([]byte("KVD")))
	assert.ErrorIs(t, err, record.ErrBadHeader)
}
