package testing

import (
	"fmt"
	"github.com/ValentinKolb/kvd/lib/db"
	"math/rand"
	"path/filepath"
	"sync/atomic"
	"testing"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Create", func(b *testing.B) {
		benchmarkCreate(b, open(b, factory))
	})

	b.Run("UpdateExisting", func(b *testing.B) {
		benchmarkUpdateExisting(b, open(b, factory))
	})

	b.Run("CreateLargeValue", func(b *testing.B) {
		benchmarkCreateLargeValue(b, open(b, factory))
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, open(b, factory))
	})

	b.Run("Exists", func(b *testing.B) {
		benchmarkExists(b, open(b, factory))
	})

	b.Run("Delete", func(b *testing.B) {
		benchmarkDelete(b, open(b, factory))
	})

	b.Run("List", func(b *testing.B) {
		benchmarkList(b, open(b, factory))
	})

	b.Run("Search", func(b *testing.B) {
		benchmarkSearch(b, open(b, factory))
	})

	b.Run("Replay", func(b *testing.B) {
		benchmarkReplay(b, factory)
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, open(b, factory))
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// fill creates numKeys keys of the form test-key-<i>
func fill(b *testing.B, database db.KVDB, numKeys int) {
	b.Helper()
	pairs := make([]db.Pair, numKeys)
	for i := range pairs {
		pairs[i] = db.Pair{
			Key:   fmt.Sprintf("test-key-%d", i),
			Value: []byte(fmt.Sprintf("test-value-%d", i)),
		}
	}
	if n := database.BatchSet(pairs); n != numKeys {
		b.Fatalf("Expected %d keys, got %d", numKeys, n)
	}
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Create operation
func benchmarkCreate(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			key := fmt.Sprintf("test-key-%d", i)
			value := []byte(fmt.Sprintf("test-value-%d", i))
			_ = database.Create(key, value)
		}
	})
}

// Benchmark for Update operation with existing keys
func benchmarkUpdateExisting(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	// Prepare data
	numKeys := 1000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%numKeys)
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			_ = database.Update(key, value)
			counter++
		}
	})
}

// Benchmark for Create operation with large values
func benchmarkCreateLargeValue(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	largeValue := make([]byte, 1*1024*1024) // 1MB
	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter.Add(1))
			_ = database.Create(key, largeValue)
		}
	})
}

// Parallel benchmarking for Get operation
func benchmarkGet(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	// Prepare data
	numKeys := 10000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%numKeys)
			_, _ = database.Get(key)
			counter++
		}
	})
}

// Parallel benchmarking for Exists operation
func benchmarkExists(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	numKeys := 10000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			// every second key does not exist
			key := fmt.Sprintf("test-key-%d", counter%(2*numKeys))
			_ = database.Exists(key)
			counter++
		}
	})
}

// Parallel benchmarking for Delete operation
func benchmarkDelete(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	numKeys := 100000
	if b.N < numKeys {
		numKeys = b.N
	}

	// Prepare data
	fill(b, database, numKeys)

	// Counter for atomic access
	var counter atomic.Int64

	// Reset timer since we were doing setup
	b.ResetTimer()

	// Run parallel delete operations
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1) - 1
			_ = database.Delete(fmt.Sprintf("test-key-%d", i%int64(numKeys)))
		}
	})
}

// Benchmark for prefix listing with a limit
func benchmarkList(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	fill(b, database, 10000)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_ = database.List(fmt.Sprintf("test-key-%d", counter%10), 100)
			counter++
		}
	})
}

// Benchmark for pattern search (uses the pattern cache after the first call)
func benchmarkSearch(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	fill(b, database, 1000)
	patterns := []string{"^test-key-1", "key-9$", "-(42|7)"}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _ = database.Search(patterns[counter%len(patterns)])
			counter++
		}
	})
}

// Benchmark for opening (replaying) a data file
func benchmarkReplay(b *testing.B, factory DBFactory) {
	path := filepath.Join(b.TempDir(), "kvstore.db")

	database, err := factory(path)
	if err != nil {
		b.Fatalf("Failed to open database: %v", err)
	}
	fill(b, database, 10000)
	if err := database.Close(); err != nil {
		b.Fatalf("Failed to close database: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database, err := factory(path)
		if err != nil {
			b.Fatalf("Failed to open database: %v", err)
		}
		_ = database.Close()
	}
}

// Benchmark for a realistic mix of reads and writes
func benchmarkMixedUsage(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	numKeys := 1000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", r.Intn(numKeys))
			switch op := r.Intn(10); {
			case op < 6:
				_, _ = database.Get(key)
			case op < 8:
				_ = database.Exists(key)
			case op < 9:
				_ = database.Update(key, []byte("updated"))
			default:
				_ = database.List("test-key-1", 10)
			}
		}
	})
}
