package logdb

import (
	"github.com/ValentinKolb/kvd/lib/db"
	dbtesting "github.com/ValentinKolb/kvd/lib/db/testing"
	"testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "LogDB", func(path string) (db.KVDB, error) {
		return NewLogDB(&DBOptions{Path: path, AutoCompactThreshold: defaultAutoCompactThreshold})
	})
}

func TestAutoCompact(t *testing.T) {
	dbtesting.RunKVDBTests(t, "LogDB(AutoCompact=3)", func(path string) (db.KVDB, error) {
		return NewLogDB(&DBOptions{Path: path, AutoCompactThreshold: 3, NoSync: true})
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "LogDB", func(path string) (db.KVDB, error) {
		return NewLogDB(&DBOptions{Path: path, NoSync: true})
	})
}
