package main

import (
	"bytes"
	"chatstat/internal/models"
	"fmt"
	json "github.com/goccy/go-json"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	baseURL      = "http://127.0.0.1:18090"
	numWorkers   = 50
	testDuration = 10 * time.Second
	numUsers     = 500
	batchSize    = 20
	// Updates land on the first daySpan epoch days.
	daySpan = 120
)

var communities = []string{"general", "gaming", "music", "dev", "offtopic"}

var reactionNames = []string{"fire", "heart", "laugh", "thumbsup"}

var httpClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 200,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	},
}

type result struct {
	endpoint string
	status   int
	latency  time.Duration
	err      bool
}

type stats struct {
	count     int64
	errors    int64
	latencies []time.Duration
}

func main() {
	fmt.Println("=== ChatStat Load Test ===")
	fmt.Printf("Workers: %d | Duration: %s\n", numWorkers, testDuration)
	fmt.Printf("Users: %d | Communities: %d | Batch: %d\n\n", numUsers, len(communities), batchSize)

	fmt.Print("Waiting for server... ")
	for i := 0; i < 30; i++ {
		resp, err := httpClient.Get(baseURL + "/health")
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			break
		}
		if i == 29 {
			fmt.Println("FAILED: server not responding")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println("OK")

	fmt.Println("\n--- Phase 1: Seeding data (POST /updates) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		return doPostUpdates(rng)
	})

	fmt.Println("\n--- Phase 2: Mixed load (70% POST, 30% GET) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.70:
			return doPostUpdates(rng)
		case r < 0.90:
			return doGetActivity(rng)
		case r < 0.95:
			return doCursor(rng)
		default:
			return doGetHealth()
		}
	})

	fmt.Println("\n--- Phase 3: Read-heavy load (10% POST, 90% GET) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.10:
			return doPostUpdates(rng)
		case r < 0.85:
			return doGetActivity(rng)
		default:
			return doGetColors(rng)
		}
	})
}

func runPhase(duration time.Duration, workFn func(rng *rand.Rand) result) {
	results := make(chan result, 10000)
	var wg sync.WaitGroup
	var totalOps atomic.Int64
	stop := make(chan struct{})

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
					r := workFn(rng)
					totalOps.Add(1)
					results <- r
				}
			}
		}(rand.Int63() + int64(i))
	}

	allResults := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := allResults[r.endpoint]
			if !ok {
				s = &stats{}
				allResults[r.endpoint] = s
			}
			s.count++
			if r.err {
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	time.Sleep(duration)
	close(stop)
	wg.Wait()
	close(results)
	<-done

	printResults(allResults, duration)
}

func printResults(allResults map[string]*stats, duration time.Duration) {
	var totalOps int64
	var totalErrors int64

	endpoints := make([]string, 0, len(allResults))
	for ep := range allResults {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	fmt.Printf("\n  %-22s %8s %6s %10s %10s %10s %10s\n",
		"Endpoint", "Reqs", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + strings.Repeat("-", 88))

	for _, ep := range endpoints {
		s := allResults[ep]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		avg := avgDuration(s.latencies)
		p50 := percentile(s.latencies, 0.50)
		p95 := percentile(s.latencies, 0.95)
		p99 := percentile(s.latencies, 0.99)

		fmt.Printf("  %-22s %8d %6d %10s %10s %10s %10s\n",
			ep, s.count, s.errors, fmtDur(avg), fmtDur(p50), fmtDur(p95), fmtDur(p99))
	}

	rps := float64(totalOps) / duration.Seconds()
	fmt.Println("  " + strings.Repeat("-", 88))
	fmt.Printf("  Total: %d reqs | Errors: %d (%.1f%%) | RPS: %.0f\n",
		totalOps, totalErrors, float64(totalErrors)/float64(totalOps)*100, rps)
}

func timed(endpoint string, want int, fn func() (*http.Response, error)) result {
	start := time.Now()
	resp, err := fn()
	lat := time.Since(start)
	if err != nil {
		return result{endpoint, 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{endpoint, resp.StatusCode, lat, resp.StatusCode != want}
}

func doPostUpdates(rng *rand.Rand) result {
	batch := make([]models.UserUpdate, batchSize)
	for i := range batch {
		id := uint64(rng.Intn(numUsers) + 1)
		u := models.UserUpdate{
			UserID:    id,
			Name:      fmt.Sprintf("user_%d", id),
			Messages:  uint64(rng.Intn(5) + 1),
			Timestamp: models.DefaultEpoch.Add(time.Duration(rng.Int63n(int64(daySpan * 24 * time.Hour)))),
		}
		if rng.Float64() < 0.3 {
			u.Reactions = []models.ReactionCount{{Name: reactionNames[rng.Intn(len(reactionNames))], Count: 1}}
		}
		batch[i] = u
	}

	data, _ := json.Marshal(batch)
	url := fmt.Sprintf("%s/updates?community=%s", baseURL, communities[rng.Intn(len(communities))])
	return timed("POST /updates", http.StatusCreated, func() (*http.Response, error) {
		return httpClient.Post(url, "application/json", bytes.NewReader(data))
	})
}

func randomRange(rng *rand.Rand) (int, int) {
	start := rng.Intn(daySpan)
	return start, start + rng.Intn(30)
}

func doGetActivity(rng *rand.Rand) result {
	start, end := randomRange(rng)
	url := fmt.Sprintf("%s/activity?community=%s&start=%d&end=%d", baseURL, communities[rng.Intn(len(communities))], start, end)
	return timed("GET /activity", http.StatusOK, func() (*http.Response, error) {
		return httpClient.Get(url)
	})
}

func doGetColors(rng *rand.Rand) result {
	start, end := randomRange(rng)
	url := fmt.Sprintf("%s/colors?community=%s&start=%d&end=%d", baseURL, communities[rng.Intn(len(communities))], start, end)
	return timed("GET /colors", http.StatusOK, func() (*http.Response, error) {
		return httpClient.Get(url)
	})
}

func doCursor(rng *rand.Rand) result {
	body := fmt.Sprintf(`{"community":%d,"channel":%d,"value":%d}`, rng.Intn(len(communities))+1, rng.Intn(50)+1, time.Now().Unix())
	return timed("POST /cursor", http.StatusNoContent, func() (*http.Response, error) {
		return httpClient.Post(baseURL+"/cursor", "application/json", strings.NewReader(body))
	})
}

func doGetHealth() result {
	return timed("GET /health", http.StatusOK, func() (*http.Response, error) {
		return httpClient.Get(baseURL + "/health")
	})
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}
