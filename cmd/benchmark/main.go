package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/punchamoorthee/buddyledger/internal/domain"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	userCount   int
	password    string
	amount      string
)

// Metrics
var (
	totalRequests uint64
	success200    uint64 // Idempotent replays
	success201    uint64 // Created
	fail409       uint64 // Idempotency conflicts
	fail422       uint64 // Business rejections, mostly insufficient balance
	fail429       uint64 // Rate limited
	failOther     uint64
)

// participant is a seeded user with a session and its default account.
type participant struct {
	token     string
	accountID int64
}

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.IntVar(&userCount, "users", 100, "Number of seeded users to drive (must not exceed the seeder's count)")
	flag.StringVar(&password, "password", "benchmark", "Password of the seeded users")
	flag.StringVar(&amount, "amount", "1.00", "Amount of each transfer")
}

func main() {
	_ = godotenv.Load()
	if v := os.Getenv("BENCH_URL"); v != "" {
		targetURL = v
	}
	flag.Parse()
	if userCount < 3 {
		log.Fatal("need at least 3 seeded users")
	}
	parsed, err := domain.ParseAmount("amount", amount)
	if err != nil {
		log.Fatalf("Invalid -amount: %v", err)
	}
	amount = parsed.StringFixed(domain.MoneyScale)

	client := &http.Client{Timeout: 5 * time.Second}
	participants, err := login(client, userCount)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}

	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s | Users: %d", workload, concurrency, duration, userCount)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, participants)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func login(client *http.Client, n int) ([]participant, error) {
	out := make([]participant, n)
	for i := range out {
		body, _ := json.Marshal(map[string]string{
			"email":    fmt.Sprintf("bench-user-%04d@example.com", i),
			"password": password,
		})
		resp, err := client.Post(targetURL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		var tok struct {
			AccessToken string `json:"access_token"`
		}
		err = json.NewDecoder(resp.Body).Decode(&tok)
		resp.Body.Close()
		if err != nil || resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("user %d: status %d", i, resp.StatusCode)
		}

		req, _ := http.NewRequest(http.MethodGet, targetURL+"/api/v1/accounts", nil)
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
		resp, err = client.Do(req)
		if err != nil {
			return nil, err
		}
		var accounts []struct {
			ID int64 `json:"id"`
		}
		err = json.NewDecoder(resp.Body).Decode(&accounts)
		resp.Body.Close()
		if err != nil || len(accounts) == 0 {
			return nil, fmt.Errorf("user %d has no account", i)
		}
		out[i] = participant{token: tok.AccessToken, accountID: accounts[0].ID}
	}
	return out, nil
}

func worker(wg *sync.WaitGroup, start time.Time, participants []participant) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		from, to := pickPair(len(participants))

		payload := map[string]interface{}{
			"sender_account_id":   participants[from].accountID,
			"receiver_account_id": participants[to].accountID,
			"amount":              amount,
			"description":         "benchmark",
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest(http.MethodPost, targetURL+"/api/v1/transfers", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+participants[from].token)
		req.Header.Set("Idempotency-Key", uuid.NewString())

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case http.StatusCreated:
			atomic.AddUint64(&success201, 1)
		case http.StatusOK:
			atomic.AddUint64(&success200, 1)
		case http.StatusConflict:
			atomic.AddUint64(&fail409, 1)
		case http.StatusUnprocessableEntity:
			atomic.AddUint64(&fail422, 1)
		case http.StatusTooManyRequests:
			atomic.AddUint64(&fail429, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

// pickPair returns sender and receiver indexes that the seeder linked as
// contacts: ring neighbours, or any user paired with user 0.
func pickPair(n int) (int, int) {
	if workload == "hotspot" && rand.Float32() < 0.90 {
		other := rand.Intn(n-1) + 1
		if rand.Float32() < 0.5 {
			return 0, other
		}
		return other, 0
	}

	a := rand.Intn(n)
	if rand.Float32() < 0.5 {
		return a, (a + 1) % n
	}
	return a, (a + n - 1) % n
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	s200 := atomic.LoadUint64(&success200)
	f409 := atomic.LoadUint64(&fail409)
	f422 := atomic.LoadUint64(&fail422)
	f429 := atomic.LoadUint64(&fail429)
	fErr := atomic.LoadUint64(&failOther)

	var tps, rejectRate float64
	if total > 0 {
		tps = float64(total) / d.Seconds()
		rejectRate = float64(f409+f422) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":          workload,
		"duration_sec":      d.Seconds(),
		"total_requests":    total,
		"throughput_tps":    tps,
		"success_created":   s201,
		"success_replay":    s200,
		"aborts_conflict":   f409,
		"rejected_business": f422,
		"rate_limited":      f429,
		"reject_rate_pct":   rejectRate,
		"errors":            fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("could not write %s: %v", filename, err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
