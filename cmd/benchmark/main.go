// Benchmark tool for measuring Axle overload detection against labelled data.
//
// Usage:
//
//	go run ./cmd/benchmark -n 2000 -url http://localhost:5000
//	go run ./cmd/benchmark -csv /path/to/fleet.csv
//
// This tool:
//  1. Generates a labelled synthetic fleet, or reads one from CSV
//  2. Sends each vehicle to POST /predict
//  3. Compares the returned status (OVERLOAD/SAFE/WARNING) with the label
//  4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// PredictRequest is the Axle /predict request format.
type PredictRequest struct {
	CurrentLoad        float64 `json:"currentLoad"`
	MaxLoad            float64 `json:"maxLoad"`
	Suspension         float64 `json:"suspension"`
	TirePressure       float64 `json:"tirePressure"`
	Weight             float64 `json:"weight"`
	Speed              float64 `json:"speed"`
	RegistrationNumber string  `json:"registrationNumber"`
}

// PredictResponse is the subset of the /predict response the benchmark reads.
type PredictResponse struct {
	Success     bool    `json:"success"`
	Status      string  `json:"status"`
	Probability float64 `json:"probability"`
	RiskLevel   string  `json:"riskLevel"`
	LoadRatio   float64 `json:"loadRatio"`
}

// Metrics tracks benchmark results. Positive means OVERLOAD.
type Metrics struct {
	TruePositives  int64 // Overloaded vehicle reported as OVERLOAD
	FalsePositives int64 // Normal vehicle reported as OVERLOAD
	TrueNegatives  int64 // Normal vehicle not reported as OVERLOAD
	FalseNegatives int64 // Overloaded vehicle missed

	TotalProcessed  int64
	TotalOverloaded int64
	TotalNormal     int64
	TotalErrors     int64

	ProcessingTimeMs int64
}

func main() {
	csvPath := flag.String("csv", "", "Path to a labelled fleet CSV (synthetic fleet when empty)")
	baseURL := flag.String("url", "http://localhost:5000", "Axle base URL")
	count := flag.Int("n", 1000, "Number of synthetic vehicles, or maximum CSV rows (0 = all rows)")
	overloadShare := flag.Float64("overload", 0.3, "Share of overloaded vehicles in the synthetic fleet")
	seed := flag.Uint64("seed", 42, "Random seed for the synthetic fleet")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each prediction")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║           AXLE BENCHMARK - Overload Detection                 ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	if *csvPath != "" {
		fmt.Printf("\nCSV File:    %s\n", *csvPath)
	} else {
		fmt.Printf("\nFleet:       synthetic (seed %d, %.0f%% overloaded)\n", *seed, *overloadShare*100)
	}
	fmt.Printf("Axle URL:    %s\n", *baseURL)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *count)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Axle not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Axle is running:")
		fmt.Println("  go run ./cmd/axle")
		os.Exit(1)
	}
	fmt.Println("✓ Axle is healthy")

	var (
		fleet []Sample
		err   error
	)
	if *csvPath != "" {
		fmt.Printf("\nReading fleet from %s...\n", *csvPath)
		fleet, err = readFleetCSV(*csvPath, *count)
		if err != nil {
			fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
			os.Exit(1)
		}
	} else {
		fleet = generateFleet(*count, *overloadShare, *seed)
	}
	if len(fleet) == 0 {
		fmt.Println("ERROR: no vehicles to send")
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d vehicles\n", len(fleet))

	overloaded := 0
	for _, s := range fleet {
		if s.Overloaded {
			overloaded++
		}
	}
	fmt.Printf("  - Overloaded: %d (%.2f%%)\n", overloaded, 100*float64(overloaded)/float64(len(fleet)))
	fmt.Printf("  - Normal:     %d (%.2f%%)\n", len(fleet)-overloaded, 100*float64(len(fleet)-overloaded)/float64(len(fleet)))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(fleet, *baseURL, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func runBenchmark(fleet []Sample, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}
	if numWorkers <= 0 {
		numWorkers = 1
	}

	work := make(chan Sample, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for s := range work {
				start := time.Now()
				result, err := predict(client, baseURL, s)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", s.Registration, err)
					}
					continue
				}

				metrics.record(result.Status == "OVERLOAD", s.Overloaded)

				if verbose {
					mark := "✓"
					if (result.Status == "OVERLOAD") != s.Overloaded {
						mark = "✗"
					}
					fmt.Printf("%s %-10s | Load: %5.2f/%5.2f t | Susp: %5.1f | Tire: %4.1f | Speed: %5.1f | Overloaded: %-5v | Axle: %-8s (%.2f)\n",
						mark,
						s.Registration,
						s.CurrentLoad,
						s.MaxLoad,
						s.Suspension,
						s.TirePressure,
						s.Speed,
						s.Overloaded,
						result.Status,
						result.Probability,
					)
				}
			}
		}()
	}

	for _, s := range fleet {
		work <- s
	}
	close(work)

	wg.Wait()

	return metrics
}

func predict(client *http.Client, baseURL string, s Sample) (*PredictResponse, error) {
	req := PredictRequest{
		CurrentLoad:        s.CurrentLoad,
		MaxLoad:            s.MaxLoad,
		Suspension:         s.Suspension,
		TirePressure:       s.TirePressure,
		Weight:             s.Weight,
		Speed:              s.Speed,
		RegistrationNumber: s.Registration,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (m *Metrics) record(predicted, actual bool) {
	if actual {
		atomic.AddInt64(&m.TotalOverloaded, 1)
	} else {
		atomic.AddInt64(&m.TotalNormal, 1)
	}

	switch {
	case predicted && actual:
		atomic.AddInt64(&m.TruePositives, 1)
	case predicted && !actual:
		atomic.AddInt64(&m.FalsePositives, 1)
	case !predicted && !actual:
		atomic.AddInt64(&m.TrueNegatives, 1)
	default:
		atomic.AddInt64(&m.FalseNegatives, 1)
	}
}

// Scores holds the derived detection metrics.
type Scores struct {
	Precision float64
	Recall    float64
	F1        float64
	Accuracy  float64
}

func (m *Metrics) scores() Scores {
	var s Scores
	if m.TruePositives+m.FalsePositives > 0 {
		s.Precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}
	if m.TruePositives+m.FalseNegatives > 0 {
		s.Recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * (s.Precision * s.Recall) / (s.Precision + s.Recall)
	}
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		s.Accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}
	return s
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Overloaded:       %d\n", m.TotalOverloaded)
	fmt.Printf("   Normal:           %d\n", m.TotalNormal)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                  OVERLOAD    OTHER")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  O  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           N  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	s := m.scores()

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of OVERLOAD verdicts, how many were overloaded)\n", s.Precision)
	fmt.Printf("   Recall:     %.4f  (of overloaded vehicles, how many were caught)\n", s.Recall)
	fmt.Printf("   F1-Score:   %.4f\n", s.F1)
	fmt.Printf("   Accuracy:   %.4f\n", s.Accuracy)

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f req/sec\n", rps)
	}

	fmt.Printf("\n💡 INTERPRETATION\n")
	switch {
	case s.Recall >= 0.9:
		fmt.Println("   ✅ Excellent recall - catching most overloaded vehicles")
	case s.Recall >= 0.7:
		fmt.Println("   ⚠️  Good recall - but missing some overloaded vehicles")
	default:
		fmt.Println("   ❌ Poor recall - many overloaded vehicles are missed")
	}
	if s.Precision >= 0.9 {
		fmt.Println("   ✅ Good precision - OVERLOAD verdicts are meaningful")
	} else {
		fmt.Println("   ⚠️  Low precision - normal vehicles flagged as overloaded")
	}

	fmt.Println()
}
