package util

import (
	"github.com/ValentinKolb/kvd/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
)

func TestParseShards(t *testing.T) {
	shards, err := ParseShards("1=data/one.db, 2 = /var/lib/kvd/two.db,")
	require.NoError(t, err)
	assert.Equal(t, []common.ServerShard{
		{ShardID: 1, Path: "data/one.db"},
		{ShardID: 2, Path: "/var/lib/kvd/two.db"},
	}, shards)

	for _, invalid := range []string{"", "1", "x=data.db", "1=", "-1=data.db"} {
		_, err := ParseShards(invalid)
		assert.Error(t, err, invalid)
	}
}

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short text", WrapString("  short   text "))
}
