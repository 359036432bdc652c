package kv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"github.com/ValentinKolb/kvd/cmd/util"
	"github.com/ValentinKolb/kvd/lib/db"
	"github.com/ValentinKolb/kvd/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for kvd servers",
		Long:    "Runs a set of benchmarks against a shard. All keys are written below the prefix __perf and deleted afterwards.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__perf"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. create,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the update-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// --------------------------------------------------------------------------
// Benchmarks
// --------------------------------------------------------------------------

// perfTest is a single benchmark. prepare writes the keys the test needs,
// op is the measured operation.
type perfTest struct {
	name    string
	prepare bool
	op      func(key string, n int64) error
}

// perfResult is the outcome of a perfTest
type perfResult struct {
	bench  testing.BenchmarkResult
	timer  gometrics.Timer
	errors gometrics.Counter
}

func perfTests() []perfTest {
	largeValue := make([]byte, perfLargeValueSizeKB*1024)
	value := []byte("test")

	return []perfTest{
		{name: "create", op: func(key string, n int64) error {
			return rpcStore.Create(fmt.Sprintf("%s-%d", key, n), value)
		}},
		{name: "update", prepare: true, op: func(key string, _ int64) error {
			return rpcStore.Update(key, value)
		}},
		{name: "update-large", prepare: true, op: func(key string, _ int64) error {
			return rpcStore.Update(key, largeValue)
		}},
		{name: "get", prepare: true, op: func(key string, _ int64) error {
			_, err := rpcStore.Get(key)
			return err
		}},
		{name: "info", prepare: true, op: func(key string, _ int64) error {
			_, err := rpcStore.Info(key)
			return err
		}},
		{name: "exists", prepare: true, op: func(key string, _ int64) error {
			_, err := rpcStore.Exists(key)
			return err
		}},
		{name: "exists-not", op: func(key string, _ int64) error {
			_, err := rpcStore.Exists(key)
			return err
		}},
		{name: "create-delete", op: func(key string, n int64) error {
			k := fmt.Sprintf("%s-%d", key, n)
			if err := rpcStore.Create(k, value); err != nil {
				return err
			}
			return rpcStore.Delete(k)
		}},
		{name: "list", prepare: true, op: func(_ string, _ int64) error {
			_, err := rpcStore.List(perfKeyPrefix+"-list", 10)
			return err
		}},
		{name: "mixed", prepare: true, op: func(key string, n int64) error {
			var err error
			switch n % 4 {
			case 0:
				err = rpcStore.Update(key, value)
			case 1:
				_, err = rpcStore.Get(key)
			case 2:
				_, err = rpcStore.Exists(key)
			case 3:
				_, err = rpcStore.Info(key)
			}
			// the key may be missing if a previous update of it failed
			if errors.Is(err, db.ErrNotFound) {
				return nil
			}
			return err
		}},
	}
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for kvd servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	registry := gometrics.NewRegistry()
	results := make(map[string]perfResult)
	var order []string

	for _, test := range perfTests() {
		if shouldSkip(test.name) {
			fmt.Printf("%-20sskipped\n", test.name)
			continue
		}
		result := runPerfTest(test, registry)
		results[test.name] = result
		order = append(order, test.name)
		printResult(test.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, order, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runPerfTest runs one benchmark. The latency of every single operation is recorded
// in a timer of the registry, failed operations in a counter.
func runPerfTest(test perfTest, registry gometrics.Registry) perfResult {
	result := perfResult{
		timer:  gometrics.GetOrRegisterTimer(test.name, registry),
		errors: gometrics.GetOrRegisterCounter(test.name+".errors", registry),
	}

	keyPrefix := fmt.Sprintf("%s-%s", perfKeyPrefix, test.name)
	getKey := getKeys(keyPrefix)

	result.bench = testing.Benchmark(func(b *testing.B) {
		if test.prepare {
			pairs := make([]db.Pair, perfKeySpread)
			for i := range pairs {
				pairs[i] = db.Pair{Key: getKey(i), Value: []byte("test")}
			}
			if _, err := rpcStore.BatchSet(pairs); err != nil {
				util.Logger.Errorf("(%s) - error preparing keys: %v", test.name, err)
			}
		}

		// cleanup
		b.Cleanup(func() {
			if _, err := rpcStore.DeletePrefix(keyPrefix); err != nil {
				util.Logger.Errorf("(%s) - error deleting keys: %v", test.name, err)
			}
		})

		var counter atomic.Int64

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				n := counter.Add(1)
				start := time.Now()
				err := test.op(getKey(int(n)), n)
				result.timer.UpdateSince(start)
				if err != nil {
					result.errors.Inc(1)
					util.Logger.Debugf("(%s) - error: %v", test.name, err)
				}
			}
		})
	})

	return result
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// getKeys returns a function to get one of perfKeySpread test keys by index (with wraparound)
func getKeys(prefix string) func(int) string {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%d", prefix, i)
	}

	return func(i int) string {
		return keys[i%perfKeySpread]
	}
}

// opsPerSec derives the throughput of a benchmark
func opsPerSec(result testing.BenchmarkResult) (nsPerOp float64, ops float64) {
	nsPerOp = math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	return nsPerOp, 1.0 / (nsPerOp / 1e9)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	nsPerOp, ops := opsPerSec(result.bench)
	percentiles := result.timer.Percentiles([]float64{0.5, 0.99})

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p99=%s\terrors=%d\n",
		test, nsPerOp, time.Duration(nsPerOp), ops,
		time.Duration(percentiles[0]), time.Duration(percentiles[1]),
		result.errors.Count())
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, order []string, results map[string]perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50", "P99", "Errors",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"ShardID", "Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for _, test := range order {
		result := results[test]
		nsPerOp, ops := opsPerSec(result.bench)
		percentiles := result.timer.Percentiles([]float64{0.5, 0.99})

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", ops),
			time.Duration(percentiles[0]).String(),
			time.Duration(percentiles[1]).String(),
			strconv.FormatInt(result.errors.Count(), 10),
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetShardID(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
