package loadgen

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
	// ClientIPs spreads traffic over X-Forwarded-For values so per-client
	// quotas can be observed independently.
	ClientIPs int
}

type Result struct {
	TotalRequests int64
	Failures      int64
	Status2xx     int64
	Status3xx     int64
	Status4xx     int64
	Status5xx     int64
	RateLimited   int64
	Locked        int64
}

type request struct {
	method string
	path   string
	body   string
}

func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 15
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.ClientIPs <= 0 {
		cfg.ClientIPs = 1
	}

	requests := requestsForProfile(cfg.Profile)
	if len(requests) == 0 {
		return Result{}, fmt.Errorf("unknown profile: %s", cfg.Profile)
	}
	client := &http.Client{
		Timeout: 5 * time.Second,
		// Verification links redirect; the redirect itself is the result.
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var res Result
	type job struct {
		req request
		ip  string
	}
	jobs := make(chan job, cfg.Concurrency*2)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				status, err := send(ctx, client, cfg.BaseURL, j.req, j.ip)
				if err != nil {
					atomic.AddInt64(&res.Failures, 1)
					continue
				}
				atomic.AddInt64(&res.TotalRequests, 1)
				tally(&res, status)
			}
		}()
	}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
	defer ticker.Stop()
	i := 0
	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return res, nil
		case <-ticker.C:
			ip := fmt.Sprintf("198.51.100.%d", 1+rng.Intn(cfg.ClientIPs)%254)
			jobs <- job{req: requests[i%len(requests)], ip: ip}
			i++
		}
	}
}

func send(ctx context.Context, client *http.Client, baseURL string, r request, ip string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, r.method, baseURL+r.path, bytes.NewReader([]byte(r.body)))
	if err != nil {
		return 0, err
	}
	if r.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Forwarded-For", ip)
	req.Header.Set("User-Agent", "legal-chat-auth-loadgen")
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func tally(res *Result, status int) {
	switch {
	case status == http.StatusTooManyRequests:
		atomic.AddInt64(&res.RateLimited, 1)
		atomic.AddInt64(&res.Status4xx, 1)
	case status == http.StatusLocked:
		atomic.AddInt64(&res.Locked, 1)
		atomic.AddInt64(&res.Status4xx, 1)
	case status >= 200 && status < 300:
		atomic.AddInt64(&res.Status2xx, 1)
	case status >= 300 && status < 400:
		atomic.AddInt64(&res.Status3xx, 1)
	case status >= 400 && status < 500:
		atomic.AddInt64(&res.Status4xx, 1)
	case status >= 500:
		atomic.AddInt64(&res.Status5xx, 1)
	}
}

func loginAttempt(email, password string) request {
	return request{
		method: http.MethodPost,
		path:   "/api/auth/login",
		body:   fmt.Sprintf(`{"email":%q,"password":%q}`, email, password),
	}
}

func requestsForProfile(profile string) []request {
	probe := request{method: http.MethodGet, path: "/api/auth/session"}
	badVerify := request{method: http.MethodGet, path: "/api/auth/verify?email=nobody%40reichmanjorgensen.com&token=bad"}
	switch strings.ToLower(profile) {
	case "", "mixed":
		return []request{
			loginAttempt("loadgen@reichmanjorgensen.com", "not-the-password"),
			probe,
			badVerify,
			{method: http.MethodGet, path: "/health/ready"},
		}
	case "auth":
		return []request{
			loginAttempt("loadgen@reichmanjorgensen.com", "not-the-password"),
			loginAttempt("outsider@example.com", "not-the-password"),
			badVerify,
		}
	case "lockout":
		return []request{loginAttempt("loadgen@reichmanjorgensen.com", "not-the-password")}
	case "error-heavy":
		return []request{
			{method: http.MethodPost, path: "/api/auth/login", body: `{"email":`},
			{method: http.MethodGet, path: "/api/admin/users"},
			probe,
		}
	default:
		return nil
	}
}
