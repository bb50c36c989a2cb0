package perf

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dFlux/cmd/util"
	"github.com/ValentinKolb/dFlux/lib/dispatcher"
	"github.com/ValentinKolb/dFlux/lib/docstore"
	"github.com/ValentinKolb/dFlux/lib/getter"
	"github.com/ValentinKolb/dFlux/lib/immutable"
	"github.com/ValentinKolb/dFlux/lib/reactor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// PerfCmd measures dispatch and evaluation throughput
	PerfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the reactor",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfNumThreads = 10
	perfKeySpread  = 100
	perfCacheLimit = reactor.DefaultConfig().CacheLimit
	perfSkip       = make([]string, 0)
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	key := "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. dispatch,post)"))
	key = "threads"
	PerfCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines per CPU for the parallel benchmarks"))
	key = "keys"
	PerfCmd.Flags().Int(key, 100, util.WrapString("How many different keys (and observers) to use for the tests"))
	key = "cache-limit"
	PerfCmd.Flags().Int(key, reactor.DefaultConfig().CacheLimit, util.WrapString("Maximum number of memoized getter values"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfCacheLimit = viper.GetInt("cache-limit")
	if s := viper.GetString("skip"); s != "" {
		perfSkip = strings.Split(s, ",")
	}

	if perfKeySpread <= 0 || perfNumThreads <= 0 {
		return fmt.Errorf("keys and threads must be positive")
	}
	return util.InitLoggers("warn")
}

// benchmark is one named test
type benchmark struct {
	name string
	fn   func(b *testing.B)
}

func run(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for dFlux")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Keys: %d\n", perfKeySpread)
	fmt.Printf("Cache limit: %d\n", perfCacheLimit)
	fmt.Println()
	fmt.Println("starting tests...")

	benchmarks := []benchmark{
		{"dispatch", benchDispatch},
		{"dispatch-observed", benchDispatchObserved},
		{"dispatch-parallel", benchDispatchParallel},
		{"post-parallel", benchPostParallel},
		{"evaluate-hit", benchEvaluateHit},
		{"evaluate-miss", benchEvaluateMiss},
	}

	results := make(map[string]testing.BenchmarkResult)
	for _, bm := range benchmarks {
		if shouldSkip(bm.name) {
			results[bm.name] = testing.BenchmarkResult{}
		} else {
			results[bm.name] = testing.Benchmark(bm.fn)
		}
		printResult(bm.name, results[bm.name])
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, benchmarks, results); err != nil {
			return err
		}
		fmt.Printf("\nresults written to %s\n", csvPath)
	}
	return nil
}

// --------------------------------------------------------------------------
// Benchmarks
// --------------------------------------------------------------------------

// newReactor creates a reactor with one docstore holding perfKeySpread counters
func newReactor(b *testing.B) *reactor.Reactor {
	initial := make(map[string]any, perfKeySpread)
	getKey, _ := getKeys()
	for i := 0; i < perfKeySpread; i++ {
		initial[getKey(i)] = 0
	}

	r := reactor.New(&reactor.Config{CacheLimit: perfCacheLimit})
	if err := r.RegisterStore("perf", docstore.New("perf", initial)); err != nil {
		b.Fatalf("RegisterStore failed: %v", err)
	}
	return r
}

func incrementPayload(key string) docstore.Payload {
	return docstore.Payload{Store: "perf", Path: []any{key}}
}

func benchDispatch(b *testing.B) {
	r := newReactor(b)
	getKey, _ := getKeys()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := r.Dispatch(docstore.ActionIncrement, incrementPayload(getKey(i))); err != nil {
			b.Fatalf("Dispatch failed: %v", err)
		}
	}
}

func benchDispatchObserved(b *testing.B) {
	r := newReactor(b)
	getKey, iterateKeys := getKeys()
	iterateKeys(func(key string) {
		if _, err := r.Observe(getter.NewKeyPath("perf", key), func(any) {}); err != nil {
			b.Fatalf("Observe failed: %v", err)
		}
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := r.Dispatch(docstore.ActionIncrement, incrementPayload(getKey(i))); err != nil {
			b.Fatalf("Dispatch failed: %v", err)
		}
	}
}

func benchDispatchParallel(b *testing.B) {
	d := dispatcher.New(newReactor(b))
	defer d.Close()
	getKey, _ := getKeys()
	ctx := context.Background()

	b.SetParallelism(perfNumThreads)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if err := d.Dispatch(ctx, docstore.ActionIncrement, incrementPayload(getKey(i))); err != nil {
				b.Errorf("Dispatch failed: %v", err)
				return
			}
			i++
		}
	})
}

func benchPostParallel(b *testing.B) {
	d := dispatcher.New(newReactor(b))
	getKey, _ := getKeys()

	b.SetParallelism(perfNumThreads)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			d.Post(docstore.ActionIncrement, incrementPayload(getKey(i)))
			i++
		}
	})
	// include draining the queue
	d.Close()
}

// sumGetter sums all counters of the perf store
func sumGetter() *getter.Getter {
	return getter.Named("sum", func(args ...any) (any, error) {
		sum := 0
		if m, ok := args[0].(*immutable.Map); ok {
			m.Range(func(_, v any) bool {
				if n, ok := v.(int); ok {
					sum += n
				}
				return true
			})
		}
		return sum, nil
	}, getter.NewKeyPath("perf"))
}

func benchEvaluateHit(b *testing.B) {
	r := newReactor(b)
	g := sumGetter()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.Evaluate(g); err != nil {
			b.Fatalf("Evaluate failed: %v", err)
		}
	}
}

func benchEvaluateMiss(b *testing.B) {
	r := newReactor(b)
	g := sumGetter()
	getKey, _ := getKeys()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.Dispatch(docstore.ActionIncrement, incrementPayload(getKey(i)))
		if _, err := r.Evaluate(g); err != nil {
			b.Fatalf("Evaluate failed: %v", err)
		}
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// creates an array of test keys and functions to work with them
func getKeys() (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("key-%d", i)
	}

	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, benchmarks []benchmark, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped", "Threads", "Keys", "CacheLimit"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, bm := range benchmarks {
		result := results[bm.name]

		var nsPerOp, opsPerSec float64
		skipped := "true"
		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			bm.name,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfKeySpread),
			strconv.Itoa(perfCacheLimit),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", bm.name, err)
		}
	}
	return nil
}
