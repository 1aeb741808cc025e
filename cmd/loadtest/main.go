package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL        string
	Concurrency    int
	Duration       time.Duration
	CopiesPerTitle int
	WriteRatio     float64
}

var seedTitles = []struct {
	Text    string
	Authors []string
	Year    int
}{
	{"The Go Programming Language", []string{"Alan Donovan", "Brian Kernighan"}, 2015},
	{"The C Programming Language", []string{"Brian Kernighan", "Dennis Ritchie"}, 1978},
	{"Designing Data-Intensive Applications", []string{"Martin Kleppmann"}, 2017},
	{"Structure and Interpretation of Computer Programs", []string{"Harold Abelson", "Gerald Sussman"}, 1985},
	{"The Art of Computer Programming", []string{"Donald Knuth"}, 1968},
	{"Introduction to Algorithms", []string{"Thomas Cormen", "Charles Leiserson", "Ronald Rivest"}, 1990},
	{"Database Internals", []string{"Alex Petrov"}, 2019},
	{"Site Reliability Engineering", []string{"Betsy Beyer", "Chris Jones"}, 2016},
	{"A Philosophy of Software Design", []string{"John Ousterhout"}, 2018},
	{"The Pragmatic Programmer", []string{"Andrew Hunt", "David Thomas"}, 1999},
}

var queries = []string{
	"programming",
	`"the go programming language"`,
	"kernighan",
	`"donald knuth" algorithms`,
	"data intensive applications",
	"1985",
	"design",
	"reliability engineering",
	"database",
	"cookbook",
}

// opStats aggregates one request kind.
type opStats struct {
	total       atomic.Int64
	errors      atomic.Int64
	latencies   []time.Duration
	latenciesMu sync.Mutex
}

func (s *opStats) record(d time.Duration, status int, err error) {
	s.total.Add(1)
	if err != nil || status >= 500 || status == http.StatusTooManyRequests {
		s.errors.Add(1)
		if err != nil {
			return
		}
	}
	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, d)
	s.latenciesMu.Unlock()
}

type Stats struct {
	ops           map[string]*opStats
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		ops: map[string]*opStats{
			"search":   {},
			"checkout": {},
			"checkin":  {},
		},
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *Stats) RecordRequest(op string, duration time.Duration, statusCode int, err error) {
	s.ops[op].record(duration, statusCode, err)
	if err != nil {
		return
	}
	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the catalog service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	copies := flag.Int("copies", 3, "copies purchased per seed title")
	writeRatio := flag.Float64("write-ratio", 0.2, "fraction of requests that are checkouts or checkins")
	flag.Parse()

	cfg := Config{
		BaseURL:        *baseURL,
		Concurrency:    *concurrency,
		Duration:       *duration,
		CopiesPerTitle: *copies,
		WriteRatio:     *writeRatio,
	}

	fmt.Println("=== Library Catalog Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Write ratio: %.2f\n", cfg.WriteRatio)
	fmt.Println()

	client := newClient(cfg.Concurrency)
	copyIDs, err := seed(context.Background(), client, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seeding catalog: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Seeded %d copies of %d titles\n\n", len(copyIDs), len(seedTitles))

	stats := runLoadTest(client, cfg, copyIDs)
	printReport(stats, cfg.Duration)
}

func newClient(concurrency int) *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func seed(ctx context.Context, client *http.Client, cfg Config) ([]string, error) {
	ids := make([]string, 0, len(seedTitles)*cfg.CopiesPerTitle)
	for _, t := range seedTitles {
		body, err := json.Marshal(map[string]any{"text": t.Text, "authors": t.Authors, "year": t.Year})
		if err != nil {
			return nil, err
		}
		for range cfg.CopiesPerTitle {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost,
				cfg.BaseURL+"/api/v1/titles/purchase", bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			var created struct {
				ID string `json:"id"`
			}
			err = json.NewDecoder(resp.Body).Decode(&created)
			resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				return nil, fmt.Errorf("purchase %q: status %d", t.Text, resp.StatusCode)
			}
			if err != nil {
				return nil, fmt.Errorf("decoding purchase response: %w", err)
			}
			ids = append(ids, created.ID)
		}
	}
	return ids, nil
}

func runLoadTest(client *http.Client, cfg Config, copyIDs []string) *Stats {
	stats := NewStats()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(uint64(w), uint64(time.Now().UnixNano())))
			queryIdx := w
			for ctx.Err() == nil {
				if len(copyIDs) > 0 && rng.Float64() < cfg.WriteRatio {
					id := copyIDs[rng.IntN(len(copyIDs))]
					op := "checkout"
					if rng.IntN(2) == 0 {
						op = "checkin"
					}
					do(ctx, client, stats, op, http.MethodPost,
						fmt.Sprintf("%s/api/v1/copies/%s/%s", cfg.BaseURL, id, op))
					continue
				}
				query := queries[queryIdx%len(queries)]
				queryIdx++
				do(ctx, client, stats, "search", http.MethodGet,
					fmt.Sprintf("%s/api/v1/search?q=%s&limit=10", cfg.BaseURL, url.QueryEscape(query)))
			}
			return nil
		})
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	_ = g.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func do(ctx context.Context, client *http.Client, stats *Stats, op, method, rawURL string) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		panic(fmt.Sprintf("creating request: %v", err))
	}
	start := time.Now()
	resp, err := client.Do(req)
	d := time.Since(start)
	if err != nil {
		// Requests cut off by the end of the run are not failures.
		if ctx.Err() == nil {
			stats.RecordRequest(op, d, 0, err)
		}
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	stats.RecordRequest(op, d, resp.StatusCode, nil)
}

func printReport(stats *Stats, duration time.Duration) {
	var total int64
	names := make([]string, 0, len(stats.ops))
	for name, s := range stats.ops {
		names = append(names, name)
		total += s.total.Load()
	}
	sort.Strings(names)

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	if total > 0 {
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	for _, name := range names {
		s := stats.ops[name]
		n := s.total.Load()
		if n == 0 {
			continue
		}
		s.latenciesMu.Lock()
		latencies := append([]time.Duration(nil), s.latencies...)
		s.latenciesMu.Unlock()

		fmt.Println()
		fmt.Printf("=== %s ===\n", name)
		fmt.Printf("Requests:   %d\n", n)
		fmt.Printf("Errors:     %d (%.2f%%)\n", s.errors.Load(), float64(s.errors.Load())/float64(n)*100)
		if len(latencies) == 0 {
			continue
		}
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Printf("Min:        %s\n", latencies[0])
		fmt.Printf("Avg:        %s\n", sum/time.Duration(len(latencies)))
		fmt.Printf("P50:        %s\n", percentile(latencies, 50))
		fmt.Printf("P95:        %s\n", percentile(latencies, 95))
		fmt.Printf("P99:        %s\n", percentile(latencies, 99))
		fmt.Printf("Max:        %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
