package serializer

import (
	"fmt"
	"github.com/ValentinKolb/kvd/lib/db"
	"github.com/ValentinKolb/kvd/rpc/common"
	"testing"
	"time"
)

// benchmarkMessages returns the messages of typical client/server exchanges
func benchmarkMessages() map[string]*common.Message {
	keys := make([]string, 100)
	values := make([][]byte, 100)
	pairs := make([]db.Pair, 100)
	for i := range keys {
		keys[i] = fmt.Sprintf("user:%04d", i)
		values[i] = []byte(fmt.Sprintf(`{"id":%d,"name":"user %d"}`, i, i))
		pairs[i] = db.Pair{Key: keys[i], Value: values[i]}
	}

	now := time.Now()

	return map[string]*common.Message{
		"GetRequest":        common.NewGetRequest("user:0001"),
		"GetResponse1KB":    common.NewGetResponse(make([]byte, 1024), nil),
		"GetResponse64KB":   common.NewGetResponse(make([]byte, 64*1024), nil),
		"GetNotFound":       common.NewGetResponse(nil, db.ErrNotFound),
		"CreateRequest":     common.NewCreateRequest("user:0001", []byte(`{"id":1,"name":"alice"}`)),
		"CreateResponse":    common.NewCreateResponse(nil),
		"ExistsResponse":    common.NewExistsResponse(true, nil),
		"InfoResponse":      common.NewInfoResponse(db.Metadata{Size: 512, CreatedAt: now, UpdatedAt: now, AccessCount: 42}, nil),
		"BatchSet100":       common.NewBatchSetRequest(pairs),
		"ListResponse100":   common.NewListResponse(keys, nil),
		"SearchResponse100": common.NewSearchResponse(values, nil),
		"StatsResponse":     common.NewStatsResponse(db.Stats{TotalKeys: 1000, TotalSizeBytes: 1 << 20, DbType: db.ImplLogDB}, nil),
		"ErrorResponse":     common.NewErrorResponse("shard 7 not found"),
	}
}

// BenchmarkSerialize benchmarks serialization for all implementations and reports the encoded size
func BenchmarkSerialize(b *testing.B) {
	for name, factory := range testSerializers {
		for msgName, msg := range benchmarkMessages() {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				var size int
				b.ReportAllocs()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					data, err := serializer.Serialize(*msg)
					if err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
					size = len(data)
				}

				b.ReportMetric(float64(size), "bytes/msg")
			})
		}
	}
}

// BenchmarkDeserialize benchmarks deserialization for all implementations
func BenchmarkDeserialize(b *testing.B) {
	for name, factory := range testSerializers {
		for msgName, msg := range benchmarkMessages() {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				data, err := serializer.Serialize(*msg)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}
				b.SetBytes(int64(len(data)))
				b.ReportAllocs()
				b.ResetTimer()

				var result common.Message
				for i := 0; i < b.N; i++ {
					if err := serializer.Deserialize(data, &result); err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}
