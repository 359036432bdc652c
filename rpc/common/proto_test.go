package common

import (
	"encoding/json"
	"errors"
	"github.com/ValentinKolb/kvd/lib/db"
	"github.com/ValentinKolb/kvd/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestMessage_ErrorRoundTrip(t *testing.T) {
	// a db sentinel becomes a coded store error on the other side
	resp := NewCreateResponse(db.ErrConflict)
	assert.Equal(t, store.RetCConflict, resp.Code)

	err := resp.Error()
	require.Error(t, err)
	assert.True(t, errors.Is(err, db.ErrConflict))
	assert.Equal(t, store.RetCConflict, store.CodeOf(err))

	// store errors keep their message without the code prefix
	resp = NewGetResponse(nil, store.NewError(store.RetCNotFound, "key not found"))
	assert.Equal(t, "key not found", resp.Err)
	assert.True(t, errors.Is(resp.Error(), db.ErrNotFound))

	// success carries no error
	assert.NoError(t, NewDeleteResponse(nil).Error())

	// an error without code is an internal error
	msg := &Message{MsgType: MsgTKVGet, Err: "boom"}
	assert.Equal(t, store.RetCInternalError, store.CodeOf(msg.Error()))
}

func TestMessage_Pairs(t *testing.T) {
	pairs := []db.Pair{{Key: "a", Value: []byte("1")}, {Key: "b", Value: []byte{}}}
	req := NewBatchSetRequest(pairs)

	got, err := req.Pairs()
	require.NoError(t, err)
	assert.Equal(t, pairs, got)

	req.Values = req.Values[:1]
	_, err = req.Pairs()
	assert.Error(t, err)
}

func TestMessage_InfoAndStats(t *testing.T) {
	meta := db.Metadata{Size: 3, CreatedAt: time.Unix(10, 0).UTC(), UpdatedAt: time.Unix(20, 0).UTC(), AccessCount: 2}
	resp := NewInfoResponse(meta, nil)

	var decoded db.Metadata
	require.NoError(t, json.Unmarshal(resp.Meta, &decoded))
	assert.Equal(t, meta, decoded)

	stats := db.Stats{TotalKeys: 1, TotalSizeBytes: 3, OperationsCount: 4, DbType: db.ImplLogDB}
	resp = NewStatsResponse(stats, nil)

	var decodedStats db.Stats
	require.NoError(t, json.Unmarshal(resp.Meta, &decodedStats))
	assert.Equal(t, stats, decodedStats)
}

func TestMessageType_JSON(t *testing.T) {
	for msgType := MsgTUnknown; msgType <= MsgTCustom; msgType++ {
		b, err := json.Marshal(msgType)
		require.NoError(t, err)

		var decoded MessageType
		require.NoError(t, json.Unmarshal(b, &decoded))
		assert.Equal(t, msgType, decoded, "type %s", msgType)
	}

	var decoded MessageType
	assert.Error(t, json.Unmarshal([]byte(`"acquire"`), &decoded))
}
