package testing

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/ValentinKolb/kvd/lib/db"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// DBFactory opens the KVDB implementation with its data file at path.
// Opening the same path again after Close must restore the persisted state.
type DBFactory func(path string) (db.KVDB, error)

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Create&Get", func(t *testing.T) {
			testCreateGet(t, open(t, factory))
		})

		t.Run("CreateConflict", func(t *testing.T) {
			testCreateConflict(t, open(t, factory))
		})

		t.Run("Update", func(t *testing.T) {
			testUpdate(t, open(t, factory))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, open(t, factory))
		})

		t.Run("Validation", func(t *testing.T) {
			testValidation(t, open(t, factory))
		})

		t.Run("DeletePrefix", func(t *testing.T) {
			testDeletePrefix(t, open(t, factory))
		})

		t.Run("List", func(t *testing.T) {
			testList(t, open(t, factory))
		})

		t.Run("Search", func(t *testing.T) {
			testSearch(t, open(t, factory))
		})

		t.Run("BatchSet", func(t *testing.T) {
			testBatchSet(t, open(t, factory))
		})

		t.Run("Stats", func(t *testing.T) {
			testStats(t, open(t, factory))
		})

		t.Run("Replay", func(t *testing.T) {
			testReplay(t, factory)
		})

		t.Run("Compact", func(t *testing.T) {
			testCompact(t, factory)
		})

		t.Run("Backup", func(t *testing.T) {
			testBackup(t, factory)
		})

		t.Run("Closed", func(t *testing.T) {
			testClosed(t, open(t, factory))
		})

		t.Run("Concurrency", func(t *testing.T) {
			testConcurrency(t, open(t, factory))
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, open(t, factory))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// open creates a database in a fresh temporary directory
func open(t testing.TB, factory DBFactory) db.KVDB {
	t.Helper()
	database, err := factory(filepath.Join(t.TempDir(), "kvstore.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	return database
}

// reopen opens the database at path and fails the test on error
func reopen(t testing.TB, factory DBFactory, path string) db.KVDB {
	t.Helper()
	database, err := factory(path)
	if err != nil {
		t.Fatalf("Failed to reopen database at %s: %v", path, err)
	}
	return database
}

// mustCreate creates the key and fails the test on error
func mustCreate(t testing.TB, database db.KVDB, key, value string) {
	t.Helper()
	if err := database.Create(key, []byte(value)); err != nil {
		t.Fatalf("Create(%q) failed: %v", key, err)
	}
}

// snapshot is the complete observable state of a database
type snapshot map[string]struct {
	value []byte
	meta  db.Metadata
}

// takeSnapshot reads the state without changing access counts (Info and Search have no side effects)
func takeSnapshot(t testing.TB, database db.KVDB) snapshot {
	t.Helper()
	keys := database.List("", 0)
	values, err := database.Search("")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(keys) != len(values) {
		t.Fatalf("List and Search disagree: %d keys, %d values", len(keys), len(values))
	}

	snap := make(snapshot, len(keys))
	for i, key := range keys {
		meta, err := database.Info(key)
		if err != nil {
			t.Fatalf("Info(%q) failed: %v", key, err)
		}
		snap[key] = struct {
			value []byte
			meta  db.Metadata
		}{values[i], meta}
	}
	return snap
}

// compareSnapshots reports every difference between two states
func compareSnapshots(t testing.TB, want, got snapshot) {
	t.Helper()
	if len(want) != len(got) {
		t.Errorf("Expected %d keys, got %d", len(want), len(got))
	}
	for key, w := range want {
		g, ok := got[key]
		if !ok {
			t.Errorf("Key %q missing", key)
			continue
		}
		if !bytes.Equal(w.value, g.value) {
			t.Errorf("Key %q: expected value %q, got %q", key, w.value, g.value)
		}
		if w.meta.Size != g.meta.Size || w.meta.AccessCount != g.meta.AccessCount ||
			!w.meta.CreatedAt.Equal(g.meta.CreatedAt) || !w.meta.UpdatedAt.Equal(g.meta.UpdatedAt) {
			t.Errorf("Key %q: expected metadata %+v, got %+v", key, w.meta, g.meta)
		}
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testCreateGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	testKey := "test-key"
	testValue := []byte("test-value")

	if err := database.Create(testKey, testValue); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	meta, err := database.Info(testKey)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if meta.AccessCount != 0 {
		t.Errorf("Expected access count 0 after Create, got %d", meta.AccessCount)
	}
	if !meta.CreatedAt.Equal(meta.UpdatedAt) {
		t.Errorf("Expected created_at == updated_at after Create, got %v and %v", meta.CreatedAt, meta.UpdatedAt)
	}
	if meta.Size != len(testValue) {
		t.Errorf("Expected size %d, got %d", len(testValue), meta.Size)
	}

	result, err := database.Get(testKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(result, testValue) {
		t.Errorf("Expected value %s, got %s", testValue, result)
	}

	meta, _ = database.Info(testKey)
	if meta.AccessCount != 1 {
		t.Errorf("Expected access count 1 after Get, got %d", meta.AccessCount)
	}

	// Get must return a copy
	result[0] = 'X'
	original, _ := database.Get(testKey)
	if !bytes.Equal(original, testValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	if _, err := database.Get("nonexistent-key"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for nonexistent key, got %v", err)
	}
	if database.Exists("nonexistent-key") {
		t.Errorf("Expected nonexistent key to not exist")
	}
	if _, err := database.Info("nonexistent-key"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected ErrNotFound from Info, got %v", err)
	}

	// empty values are valid
	if err := database.Create("empty", []byte{}); err != nil {
		t.Fatalf("Create with empty value failed: %v", err)
	}
	result, err = database.Get("empty")
	if err != nil || len(result) != 0 {
		t.Errorf("Expected empty value, got %q (%v)", result, err)
	}
}

func testCreateConflict(t *testing.T, database db.KVDB) {
	defer database.Close()

	mustCreate(t, database, "k", "v1")
	before, _ := database.Info("k")

	if err := database.Create("k", []byte("v2")); !errors.Is(err, db.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}

	after, _ := database.Info("k")
	if !before.UpdatedAt.Equal(after.UpdatedAt) || before.Size != after.Size {
		t.Errorf("Conflicting Create changed metadata: %+v -> %+v", before, after)
	}

	result, err := database.Get("k")
	if err != nil || string(result) != "v1" {
		t.Errorf("Expected v1 after conflict, got %q (%v)", result, err)
	}
}

func testUpdate(t *testing.T, database db.KVDB) {
	defer database.Close()

	if err := database.Update("never-created", []byte("v")); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for Update of missing key, got %v", err)
	}
	if database.Exists("never-created") {
		t.Errorf("Update of missing key must not create it")
	}

	mustCreate(t, database, "k", "v1")
	if _, err := database.Get("k"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	before, _ := database.Info("k")

	if err := database.Update("k", []byte("value-2")); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	after, _ := database.Info("k")
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Errorf("Update must not change created_at: %v -> %v", before.CreatedAt, after.CreatedAt)
	}
	if after.UpdatedAt.Before(before.UpdatedAt) {
		t.Errorf("updated_at went backwards: %v -> %v", before.UpdatedAt, after.UpdatedAt)
	}
	if after.AccessCount != before.AccessCount {
		t.Errorf("Update must not change the access count: %d -> %d", before.AccessCount, after.AccessCount)
	}
	if after.Size != len("value-2") {
		t.Errorf("Expected size %d, got %d", len("value-2"), after.Size)
	}

	result, _ := database.Get("k")
	if string(result) != "value-2" {
		t.Errorf("Expected value-2, got %q", result)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	mustCreate(t, database, "k", "v")

	if err := database.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := database.Get("k"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after Delete, got %v", err)
	}
	if err := database.Delete("k"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for second Delete, got %v", err)
	}

	// a deleted key can be created again
	mustCreate(t, database, "k", "v2")
	meta, _ := database.Info("k")
	if meta.AccessCount != 0 {
		t.Errorf("Recreated key must start with access count 0, got %d", meta.AccessCount)
	}
}

func testValidation(t *testing.T, database db.KVDB) {
	defer database.Close()

	longKey := strings.Repeat("k", db.MaxKeySize+1)
	maxKey := strings.Repeat("k", db.MaxKeySize)
	largeValue := make([]byte, db.MaxValueSize+1)

	if err := database.Create("", []byte("v")); !errors.Is(err, db.ErrEmptyKey) {
		t.Errorf("Expected ErrEmptyKey, got %v", err)
	}
	if err := database.Create(longKey, []byte("v")); !errors.Is(err, db.ErrKeyTooLarge) {
		t.Errorf("Expected ErrKeyTooLarge, got %v", err)
	}
	if err := database.Create("k", largeValue); !errors.Is(err, db.ErrValueTooLarge) {
		t.Errorf("Expected ErrValueTooLarge, got %v", err)
	}
	if _, err := database.Get(""); !errors.Is(err, db.ErrEmptyKey) {
		t.Errorf("Expected ErrEmptyKey from Get, got %v", err)
	}
	if _, err := database.Info(longKey); !errors.Is(err, db.ErrKeyTooLarge) {
		t.Errorf("Expected ErrKeyTooLarge from Info, got %v", err)
	}
	if err := database.Delete(""); !errors.Is(err, db.ErrEmptyKey) {
		t.Errorf("Expected ErrEmptyKey from Delete, got %v", err)
	}
	if database.Exists("") || database.Exists(longKey) {
		t.Errorf("Invalid keys must never exist")
	}

	// validation comes before the presence check
	mustCreate(t, database, "present", "v")
	if err := database.Update("present", largeValue); !errors.Is(err, db.ErrValueTooLarge) {
		t.Errorf("Expected ErrValueTooLarge from Update, got %v", err)
	}
	if err := database.Update("missing", largeValue); !errors.Is(err, db.ErrValueTooLarge) {
		t.Errorf("Expected ErrValueTooLarge from Update of missing key, got %v", err)
	}

	// boundaries are valid
	if err := database.Create(maxKey, make([]byte, db.MaxValueSize)); err != nil {
		t.Errorf("Key of %d bytes and value of %d bytes must be valid: %v", db.MaxKeySize, db.MaxValueSize, err)
	}

	if stats := database.Stats(); stats.TotalKeys != 2 || stats.OperationsCount != 2 {
		t.Errorf("Validation failures must not change state: %+v", stats)
	}
}

func testDeletePrefix(t *testing.T, database db.KVDB) {
	defer database.Close()

	for _, key := range []string{"user:1", "user:2", "user:10", "users", "admin:1", "use"} {
		mustCreate(t, database, key, "value-"+key)
	}
	_, _ = database.Get("admin:1")
	before := takeSnapshot(t, database)

	count, err := database.DeletePrefix("user:")
	if err != nil {
		t.Fatalf("DeletePrefix failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 deleted keys, got %d", count)
	}

	after := takeSnapshot(t, database)
	for key := range before {
		if strings.HasPrefix(key, "user:") {
			if _, ok := after[key]; ok {
				t.Errorf("Key %q should have been deleted", key)
			}
			delete(before, key)
		}
	}
	// every other key keeps its value and metadata
	compareSnapshots(t, before, after)

	count, err = database.DeletePrefix("nothing-matches")
	if err != nil || count != 0 {
		t.Errorf("Expected 0 deleted keys without error, got %d (%v)", count, err)
	}

	// the empty prefix matches every key
	count, err = database.DeletePrefix("")
	if err != nil || count != 3 {
		t.Errorf("Expected 3 deleted keys for empty prefix, got %d (%v)", count, err)
	}
	if keys := database.List("", 0); len(keys) != 0 {
		t.Errorf("Expected no keys left, got %v", keys)
	}
}

func testList(t *testing.T, database db.KVDB) {
	defer database.Close()

	for _, key := range []string{"b", "a:2", "a:1", "c", "a:10", "ab"} {
		mustCreate(t, database, key, "v")
	}

	all := database.List("", 0)
	expected := []string{"a:1", "a:10", "a:2", "ab", "b", "c"}
	if fmt.Sprint(all) != fmt.Sprint(expected) {
		t.Errorf("Expected %v, got %v", expected, all)
	}

	if keys := database.List("a:", 0); fmt.Sprint(keys) != fmt.Sprint([]string{"a:1", "a:10", "a:2"}) {
		t.Errorf("Unexpected prefix result %v", keys)
	}
	if keys := database.List("", 2); fmt.Sprint(keys) != fmt.Sprint([]string{"a:1", "a:10"}) {
		t.Errorf("Unexpected limited result %v", keys)
	}
	if keys := database.List("a", -1); len(keys) != 4 {
		t.Errorf("Negative limit must be unlimited, got %v", keys)
	}
	if keys := database.List("zzz", 0); keys == nil || len(keys) != 0 {
		t.Errorf("Expected empty non-nil result, got %#v", keys)
	}

	// repeated calls return the same sequence
	if fmt.Sprint(database.List("", 0)) != fmt.Sprint(all) {
		t.Errorf("List is not deterministic")
	}
}

func testSearch(t *testing.T, database db.KVDB) {
	defer database.Close()

	mustCreate(t, database, "apple", "1")
	mustCreate(t, database, "banana", "2")
	mustCreate(t, database, "avocado", "3")
	mustCreate(t, database, "grape", "4")

	values, err := database.Search("^a")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if fmt.Sprintf("%s", values) != "[1 3]" {
		t.Errorf("Expected [1 3], got %s", values)
	}

	// patterns match anywhere in the key unless anchored
	values, _ = database.Search("ap")
	if fmt.Sprintf("%s", values) != "[1 4]" {
		t.Errorf("Expected [1 4], got %s", values)
	}
	values, _ = database.Search("^ap$")
	if len(values) != 0 {
		t.Errorf("Expected no match for ^ap$, got %s", values)
	}

	// search has no side effects on metadata
	meta, _ := database.Info("apple")
	if meta.AccessCount != 0 {
		t.Errorf("Search must not change the access count, got %d", meta.AccessCount)
	}

	before := database.Stats()
	if _, err := database.Search("[unclosed"); !errors.Is(err, db.ErrInvalidPattern) {
		t.Errorf("Expected ErrInvalidPattern, got %v", err)
	}
	after := database.Stats()
	if before.TotalKeys != after.TotalKeys || before.OperationsCount != after.OperationsCount {
		t.Errorf("Invalid pattern changed state: %+v -> %+v", before, after)
	}

	// cached patterns return the same result
	again, _ := database.Search("^a")
	if fmt.Sprintf("%s", again) != "[1 3]" {
		t.Errorf("Expected [1 3] on second search, got %s", again)
	}
}

func testBatchSet(t *testing.T, database db.KVDB) {
	defer database.Close()

	count := database.BatchSet([]db.Pair{
		{Key: "a", Value: []byte("1")},
		{Key: "", Value: []byte("2")},
		{Key: "b", Value: []byte("3")},
	})
	if count != 2 {
		t.Errorf("Expected success count 2, got %d", count)
	}
	if !database.Exists("a") || !database.Exists("b") {
		t.Errorf("Expected a and b to exist")
	}
	if keys := database.List("", 0); len(keys) != 2 {
		t.Errorf("Expected exactly 2 keys, got %v", keys)
	}

	// existing keys are overwritten, not rejected
	_, _ = database.Get("a")
	before, _ := database.Info("a")
	count = database.BatchSet([]db.Pair{
		{Key: "a", Value: []byte("new")},
		{Key: strings.Repeat("x", db.MaxKeySize+1), Value: []byte("v")},
		{Key: "c", Value: make([]byte, db.MaxValueSize+1)},
		{Key: "d", Value: []byte("4")},
	})
	if count != 2 {
		t.Errorf("Expected success count 2, got %d", count)
	}

	result, _ := database.Get("a")
	if string(result) != "new" {
		t.Errorf("Expected overwritten value, got %q", result)
	}
	after, _ := database.Info("a")
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Errorf("Overwrite must keep created_at")
	}
	if database.Exists("c") {
		t.Errorf("Invalid pair must not be applied")
	}

	if count := database.BatchSet(nil); count != 0 {
		t.Errorf("Expected 0 for empty batch, got %d", count)
	}
}

func testStats(t *testing.T, database db.KVDB) {
	defer database.Close()

	stats := database.Stats()
	if stats.TotalKeys != 0 || stats.TotalSizeBytes != 0 || stats.OperationsCount != 0 {
		t.Errorf("Expected empty stats, got %+v", stats)
	}

	mustCreate(t, database, "p:1", "12345")
	mustCreate(t, database, "p:2", "123")
	mustCreate(t, database, "q", "1")
	_ = database.Update("q", []byte("12"))
	_ = database.Create("q", []byte("conflict"))
	_, _ = database.Get("q")
	_ = database.Exists("q")
	_, _ = database.Search(".")

	stats = database.Stats()
	if stats.TotalKeys != 3 {
		t.Errorf("Expected 3 keys, got %d", stats.TotalKeys)
	}
	if stats.TotalSizeBytes != 10 {
		t.Errorf("Expected 10 bytes, got %d", stats.TotalSizeBytes)
	}
	// 3 creates + 1 update, failures and reads do not count
	if stats.OperationsCount != 4 {
		t.Errorf("Expected 4 operations, got %d", stats.OperationsCount)
	}

	// prefix deletion counts every removed key, batches every applied pair
	_, _ = database.DeletePrefix("p:")
	_ = database.BatchSet([]db.Pair{{Key: "x", Value: nil}, {Key: "", Value: nil}, {Key: "y", Value: nil}})
	_ = database.Delete("q")

	stats = database.Stats()
	if stats.OperationsCount != 9 {
		t.Errorf("Expected 9 operations, got %d", stats.OperationsCount)
	}
	if stats.TotalKeys != 2 || stats.TotalSizeBytes != 0 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func testReplay(t *testing.T, factory DBFactory) {
	path := filepath.Join(t.TempDir(), "kvstore.db")
	database := reopen(t, factory, path)

	mustCreate(t, database, "user:1", "alice")
	mustCreate(t, database, "user:2", "bob")
	mustCreate(t, database, "user:3", "carol")
	mustCreate(t, database, "item:1", "apple")
	_ = database.Update("user:2", []byte("robert"))
	_ = database.Delete("user:3")
	_, _ = database.Get("user:1")
	_, _ = database.Get("user:1")
	_, _ = database.DeletePrefix("item:")
	_ = database.BatchSet([]db.Pair{{Key: "item:2", Value: []byte("pear")}, {Key: "user:1", Value: []byte("alice2")}})
	mustCreate(t, database, "user:3", "carol2")

	want := takeSnapshot(t, database)
	wantStats := database.Stats()
	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	database = reopen(t, factory, path)
	defer database.Close()

	compareSnapshots(t, want, takeSnapshot(t, database))

	gotStats := database.Stats()
	if gotStats.TotalKeys != wantStats.TotalKeys || gotStats.TotalSizeBytes != wantStats.TotalSizeBytes {
		t.Errorf("Expected stats %+v after replay, got %+v", wantStats, gotStats)
	}

	meta, _ := database.Info("user:1")
	if meta.AccessCount != 2 {
		t.Errorf("Expected access count 2 to survive replay, got %d", meta.AccessCount)
	}
}

func testCompact(t *testing.T, factory DBFactory) {
	path := filepath.Join(t.TempDir(), "kvstore.db")
	database := reopen(t, factory, path)

	for i := 0; i < 50; i++ {
		mustCreate(t, database, fmt.Sprintf("key-%02d", i), "v")
		_ = database.Update(fmt.Sprintf("key-%02d", i), []byte(fmt.Sprintf("value-%d", i)))
	}
	for i := 0; i < 50; i += 2 {
		_ = database.Delete(fmt.Sprintf("key-%02d", i))
	}
	_, _ = database.Get("key-01")

	want := takeSnapshot(t, database)
	before := database.Stats()

	if err := database.Compact(); err != nil {
		t.Fatalf("Compact failed: %v", err)
	}

	after := database.Stats()
	if after.StaleRecords != 0 {
		t.Errorf("Expected no stale records after compaction, got %d", after.StaleRecords)
	}
	if before.StaleRecords > 0 && after.FileSizeBytes >= before.FileSizeBytes {
		t.Errorf("Expected a smaller file after compaction: %d -> %d", before.FileSizeBytes, after.FileSizeBytes)
	}
	compareSnapshots(t, want, takeSnapshot(t, database))

	// writes after compaction go to the new file
	mustCreate(t, database, "after", "compaction")
	want = takeSnapshot(t, database)

	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	database = reopen(t, factory, path)
	defer database.Close()

	compareSnapshots(t, want, takeSnapshot(t, database))
}

func testBackup(t *testing.T, factory DBFactory) {
	path := filepath.Join(t.TempDir(), "kvstore.db")
	database := reopen(t, factory, path)
	defer database.Close()

	mustCreate(t, database, "a", "1")
	mustCreate(t, database, "b", "2")
	_ = database.Delete("a")

	want := takeSnapshot(t, database)

	backupPath, err := database.Backup()
	if err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(backupPath), "kvstore_backup_") || filepath.Ext(backupPath) != ".db" {
		t.Errorf("Unexpected backup file name %s", backupPath)
	}

	// the live database is unchanged and usable
	compareSnapshots(t, want, takeSnapshot(t, database))
	mustCreate(t, database, "c", "3")

	backup := reopen(t, factory, backupPath)
	defer backup.Close()

	compareSnapshots(t, want, takeSnapshot(t, backup))
}

func testClosed(t *testing.T, database db.KVDB) {
	mustCreate(t, database, "k", "v")

	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := database.Close(); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed from second Close, got %v", err)
	}
	if _, err := database.Get("k"); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed from Get, got %v", err)
	}
	if err := database.Create("x", nil); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed from Create, got %v", err)
	}
	if err := database.Compact(); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed from Compact, got %v", err)
	}
	if database.Exists("k") {
		t.Errorf("Closed database must not report keys")
	}
	if count := database.BatchSet([]db.Pair{{Key: "x", Value: nil}}); count != 0 {
		t.Errorf("Closed database must not apply batches")
	}
}

func testConcurrency(t *testing.T, database db.KVDB) {
	defer database.Close()

	const (
		numWorkers = 8
		numKeys    = 50
	)

	var wg sync.WaitGroup
	errCh := make(chan error, numWorkers*numKeys*3)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < numKeys; i++ {
				key := fmt.Sprintf("w%d:k%d", w, i)
				if err := database.Create(key, []byte(key)); err != nil {
					errCh <- err
				}
				if v, err := database.Get(key); err != nil || string(v) != key {
					errCh <- fmt.Errorf("get %s: %q %v", key, v, err)
				}
				_ = database.List(fmt.Sprintf("w%d:", w), 0)
				// every worker also races on one shared key
				if err := database.Create("shared", []byte(key)); err != nil && !errors.Is(err, db.ErrConflict) {
					errCh <- err
				}
			}
		}(w)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("Concurrent operation failed: %v", err)
	}

	stats := database.Stats()
	if stats.TotalKeys != numWorkers*numKeys+1 {
		t.Errorf("Expected %d keys, got %d", numWorkers*numKeys+1, stats.TotalKeys)
	}
	if stats.OperationsCount != numWorkers*numKeys+1 {
		t.Errorf("Expected %d operations, got %d", numWorkers*numKeys+1, stats.OperationsCount)
	}

	// concurrent prefix deletes remove every key exactly once
	var total atomic.Int64
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, _ := database.DeletePrefix("w")
			total.Add(int64(n))
		}()
	}
	wg.Wait()

	if total.Load() != numWorkers*numKeys {
		t.Errorf("Expected %d keys deleted in total, got %d", numWorkers*numKeys, total.Load())
	}
}

func testRealisticUsage(t *testing.T, database db.KVDB) {
	defer database.Close()

	// end-to-end scenario of a user table
	if err := database.Create("user:1", []byte("alice")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := database.Create("user:1", []byte("bob")); !errors.Is(err, db.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
	if v, err := database.Get("user:1"); err != nil || string(v) != "alice" {
		t.Errorf("Expected alice, got %q (%v)", v, err)
	}
	if n, err := database.DeletePrefix("user:"); err != nil || n != 1 {
		t.Errorf("Expected 1 deleted key, got %d (%v)", n, err)
	}
	if _, err := database.Get("user:1"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
