package base

import (
	"bytes"
	"encoding/binary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"testing"
)

func TestFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, 7, 42, []byte("payload")))
	require.NoError(t, writeFrame(&buf, 8, 43, nil))

	// small pooled buffer, the payload does not fit the header buffer
	shardID, requestID, data, err := readFrame(&buf, make([]byte, frameHeaderSize))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), shardID)
	assert.Equal(t, uint64(42), requestID)
	assert.Equal(t, []byte("payload"), data)

	shardID, requestID, data, err = readFrame(&buf, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), shardID)
	assert.Equal(t, uint64(43), requestID)
	assert.Empty(t, data)

	_, _, _, err = readFrame(&buf, nil)
	assert.Equal(t, io.EOF, err)
}

func TestFrame_Limits(t *testing.T) {
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint32(header[16:20], maxFrameSize+1)

	_, _, _, err := readFrame(bytes.NewReader(header), nil)
	assert.Error(t, err)

	// header announces more data than available
	binary.BigEndian.PutUint32(header[16:20], 10)
	_, _, _, err = readFrame(bytes.NewReader(append(header, 'a', 'b')), nil)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
