package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sqlite-browser/internal/worker"
)

type Scenario struct {
	TotalRequests int
	Concurrency   int
	Format        string
	Query         string
	Description   string
}

type Result struct {
	JobID          string
	Status         int
	AcceptDuration time.Duration
	TotalDuration  time.Duration // Time until the job is COMPLETED or FAILED
	Rows           int64
	Error          error
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Browser server base URL")
	dbPath := flag.String("db", "sample.db", "Database the server exports from (see scripts/seed_db)")
	flag.Parse()

	scenarios := []Scenario{
		{TotalRequests: 50, Concurrency: 10, Format: "pdf", Query: "SELECT id, name, created_at FROM users LIMIT 100", Description: "Baseline (Low Load)"},
		{TotalRequests: 100, Concurrency: 50, Format: "csv", Query: "SELECT id, name, created_at FROM users LIMIT 2000", Description: "Stress Test (High Concurrency)"},
		{TotalRequests: 20, Concurrency: 5, Format: "excel", Query: "SELECT * FROM transactions LIMIT 20000", Description: "Excel (Medium)"},
		{
			TotalRequests: 5,
			Concurrency:   2,
			Format:        "json",
			Query: `SELECT u.name, u.email, t.amount, t.currency, t.created_at
				FROM users u
				JOIN transactions t ON u.id = t.user_id
				LIMIT 100000`,
			Description: "Complex JOIN (Users + Transactions) - 100k rows",
		},
	}

	for _, scenario := range scenarios {
		runScenario(*baseURL, *dbPath, scenario)
	}
}

func runScenario(baseURL, dbPath string, sc Scenario) {
	fmt.Printf("\n=======================================================\n")
	fmt.Printf("Scenario: %s\n", sc.Description)
	fmt.Printf("Requests: %d | Concurrency: %d | Format: %s\n", sc.TotalRequests, sc.Concurrency, sc.Format)
	fmt.Printf("=======================================================\n")

	var (
		mu      sync.Mutex
		results []Result
	)
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(sc.Concurrency)

	startTime := time.Now()
	for i := 0; i < sc.TotalRequests; i++ {
		i := i
		g.Go(func() error {
			res := executeRequest(ctx, baseURL, dbPath, sc)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()

			if i%10 == 0 {
				fmt.Print(".")
			}
			return nil
		})
	}
	_ = g.Wait()
	totalTime := time.Since(startTime)
	fmt.Println()

	// Analyze Results
	var acceptLatencies []time.Duration
	var processLatencies []time.Duration
	var failures int
	var rows int64

	for _, res := range results {
		if res.Error != nil || res.Status != http.StatusAccepted {
			failures++
			continue
		}
		acceptLatencies = append(acceptLatencies, res.AcceptDuration)
		if res.TotalDuration > 0 {
			processLatencies = append(processLatencies, res.TotalDuration)
		}
		rows += res.Rows
	}

	sort.Slice(acceptLatencies, func(i, j int) bool { return acceptLatencies[i] < acceptLatencies[j] })
	sort.Slice(processLatencies, func(i, j int) bool { return processLatencies[i] < processLatencies[j] })

	// Report
	fmt.Printf("\nRESULTS:\n")
	fmt.Printf("Total Duration: %v\n", totalTime)
	fmt.Printf("Throughput: %.2f req/sec\n", float64(sc.TotalRequests)/totalTime.Seconds())
	fmt.Printf("Success Rate: %.1f%%\n", float64(sc.TotalRequests-failures)/float64(sc.TotalRequests)*100)
	fmt.Printf("Rows Exported: %d\n", rows)

	if len(acceptLatencies) > 0 {
		fmt.Printf("API Response Time (P95): %v\n", acceptLatencies[int(float64(len(acceptLatencies))*0.95)])
	}
	if len(processLatencies) > 0 {
		fmt.Printf("Job Completion Time (P95): %v\n", processLatencies[int(float64(len(processLatencies))*0.95)])
	}
}

func executeRequest(ctx context.Context, baseURL, dbPath string, sc Scenario) Result {
	start := time.Now()
	client := &http.Client{Timeout: 10 * time.Second}

	// 1. Submit Job
	body, _ := json.Marshal(map[string]string{
		"path":   dbPath,
		"query":  sc.Query,
		"format": sc.Format,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/export", bytes.NewReader(body))
	if err != nil {
		return Result{Error: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return Result{Error: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return Result{Status: resp.StatusCode, AcceptDuration: time.Since(start)}
	}

	var accepted struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		return Result{Status: resp.StatusCode, Error: err}
	}
	acceptTime := time.Since(start)

	// 2. Poll for Completion
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.After(300 * time.Second)

	for {
		select {
		case <-timeout:
			return Result{JobID: accepted.JobID, Status: http.StatusAccepted, AcceptDuration: acceptTime, Error: fmt.Errorf("timeout waiting for job")}
		case <-ticker.C:
			info, err := checkStatus(ctx, client, baseURL, accepted.JobID)
			if err != nil {
				continue // Retry on temp error
			}
			switch info.Status {
			case worker.StatusCompleted:
				return Result{
					JobID:          accepted.JobID,
					Status:         http.StatusAccepted,
					AcceptDuration: acceptTime,
					TotalDuration:  time.Since(start),
					Rows:           info.Rows,
				}
			case worker.StatusFailed:
				return Result{JobID: accepted.JobID, Status: http.StatusAccepted, AcceptDuration: acceptTime, Error: fmt.Errorf("job failed: %s", info.Error)}
			}
		}
	}
}

func checkStatus(ctx context.Context, client *http.Client, baseURL, jobID string) (*worker.JobInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/export/status?id="+jobID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status check failed: %d", resp.StatusCode)
	}

	var info worker.JobInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}
