package device

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/sockdev/cmd/util"
	"github.com/ValentinKolb/sockdev/lib/device"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Latency testing tool for device servers",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfRequests   = 1000
	perfNumThreads = 10
	perfSkip       = make([]string, 0)
)

// perfTest is a single benchmark: op is called perfRequests times spread over perfNumThreads
type perfTest struct {
	name string
	op   func(i int) error
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. query,command)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of concurrent clients"))
	key = "requests"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("Number of requests per benchmark"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfRequests = max(viper.GetInt("requests"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	fmt.Println("Latency testing tool for device servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d, Requests: %d\n", perfNumThreads, perfRequests)
	fmt.Println()

	fmt.Println("starting tests...")

	tests := []perfTest{
		{name: "query", op: func(int) error {
			_, err := rpcDevice.Query(ctx, device.KeyVerification)
			return err
		}},
		{name: "info", op: func(int) error {
			_, err := rpcDevice.Info(ctx)
			return err
		}},
		{name: "command", op: func(int) error {
			_, err := rpcDevice.Command(ctx, "GetVoltage()")
			return err
		}},
		{name: "mixed", op: func(i int) error {
			var err error
			switch i % 3 {
			case 0:
				_, err = rpcDevice.Query(ctx, device.KeyReadValue)
			case 1:
				_, err = rpcDevice.Command(ctx, "ReadValue()")
			case 2:
				_, err = rpcDevice.Command(ctx, "GetWarnings()")
			}
			return err
		}},
	}

	registry := metrics.NewRegistry()
	for _, test := range tests {
		if shouldSkip(test.name) {
			fmt.Printf("%-12sskipped\n", test.name)
			continue
		}
		timer := metrics.GetOrRegisterTimer(test.name, registry)
		errCount := runParallel(test, timer)
		printTimer(test.name, timer.Snapshot(), errCount)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, registry); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// runParallel runs test.op perfRequests times on perfNumThreads goroutines and
// records every latency in timer. It returns the number of failed requests.
func runParallel(test perfTest, timer metrics.Timer) int64 {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		next     int
		errCount int64
	)

	take := func() (int, bool) {
		mu.Lock()
		defer mu.Unlock()
		if next >= perfRequests {
			return 0, false
		}
		next++
		return next - 1, true
	}

	for range perfNumThreads {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i, ok := take()
				if !ok {
					return
				}
				start := time.Now()
				err := test.op(i)
				timer.UpdateSince(start)
				if err != nil {
					mu.Lock()
					errCount++
					mu.Unlock()
					log.Printf("(%s) - request failed: %v\n", test.name, err)
				}
			}
		}()
	}
	wg.Wait()
	return errCount
}

var percentiles = []float64{0.5, 0.95, 0.99}

// printTimer prints the result of a benchmark test in a formatted way
func printTimer(test string, t metrics.Timer, errCount int64) {
	ps := t.Percentiles(percentiles)
	fmt.Printf("%-12smean %s\tp50 %s\tp95 %s\tp99 %s\t%.0f ops/sec\terrors %d\n",
		test,
		time.Duration(t.Mean()),
		time.Duration(ps[0]),
		time.Duration(ps[1]),
		time.Duration(ps[2]),
		t.RateMean(),
		errCount,
	)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, registry metrics.Registry) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "Count", "MeanNs", "P50Ns", "P95Ns", "P99Ns", "MaxNs", "OpsPerSec",
		"Endpoints", "TimeoutSec", "Serializer", "Transport", "Threads",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	config := util.GetClientConfig()
	var rows [][]string
	registry.Each(func(name string, i interface{}) {
		timer, ok := i.(metrics.Timer)
		if !ok {
			return
		}
		t := timer.Snapshot()
		ps := t.Percentiles(percentiles)
		rows = append(rows, []string{
			name,
			strconv.FormatInt(t.Count(), 10),
			fmt.Sprintf("%.0f", t.Mean()),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			fmt.Sprintf("%.0f", ps[2]),
			strconv.FormatInt(t.Max(), 10),
			fmt.Sprintf("%.0f", t.RateMean()),
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.FormatFloat(config.TimeoutSecond, 'f', -1, 64),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
		})
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })

	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", row[0], err)
		}
	}

	return nil
}
