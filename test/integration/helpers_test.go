package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/config"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/database"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/domain"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/http/handler"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/http/middleware"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/http/router"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/ratelimit"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/repository"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/security"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/service"
)

const (
	orgDomain     = "@reichmanjorgensen.com"
	validPassword = "Str0ng!Pass"
)

var errDeliveryDown = errors.New("mail relay unavailable")

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type verificationCaptureNotifier struct {
	mu   sync.Mutex
	sent []service.VerificationNotification
	fail error
}

func (n *verificationCaptureNotifier) SendEmailVerification(_ context.Context, notification service.VerificationNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.sent = append(n.sent, notification)
	return nil
}

func (n *verificationCaptureNotifier) setFail(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fail = err
}

func (n *verificationCaptureNotifier) Last(t *testing.T) service.VerificationNotification {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		t.Fatal("expected a verification notification")
	}
	return n.sent[len(n.sent)-1]
}

// testClock lets rate-limit windows elapse without sleeping.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testServerOptions struct {
	cfgOverride  func(cfg *config.Config)
	routeQuotas  map[string]int
	defaultQuota int
	clock        *testClock
	db           *gorm.DB
}

type testServer struct {
	baseURL  string
	client   *http.Client
	db       *gorm.DB
	notifier *verificationCaptureNotifier
	users    *service.UserService
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWithOptions(t, testServerOptions{})
}

func newTestServerWithOptions(t *testing.T, opts testServerOptions) *testServer {
	t.Helper()

	db := opts.db
	if db == nil {
		db = newSQLiteDB(t)
	}

	cfg := &config.Config{
		Env:                    "test",
		AuthAllowedEmailDomain: orgDomain,
		AuthMaxLoginAttempts:   5,
		AuthLockoutDuration:    30 * time.Minute,
		AuthVerifyTokenTTL:     24 * time.Hour,
		AuthBcryptCost:         security.MinBcryptCost,
		AuthVerifyBaseURL:      "https://chat.example.test",
		AuthSignInRedirectURL:  "/auth/signin",
		SessionTTL:             8 * time.Hour,
	}
	if opts.cfgOverride != nil {
		opts.cfgOverride(cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := &verificationCaptureNotifier{}
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	recorder := service.NewAuditRecorder(auditRepo, service.NewLogAuditDeadLetter(logger), logger)
	accounts := service.NewAccountSecurityService(cfg, userRepo, recorder, notifier, logger)
	users := service.NewUserService(cfg, userRepo, auditRepo, recorder, logger)
	sessions := security.NewSessionManager("integration-secret-0123456789abcdef", cfg.SessionTTL)

	defaultQuota := opts.defaultQuota
	if defaultQuota == 0 {
		defaultQuota = 1000
	}
	var limiterOpts []ratelimit.Option
	if opts.clock != nil {
		limiterOpts = append(limiterOpts, ratelimit.WithClock(opts.clock.Now))
	}
	limiter := ratelimit.New(
		ratelimit.NewPolicy(time.Minute, defaultQuota, opts.routeQuotas),
		ratelimit.NewMemoryStore(time.Minute),
		limiterOpts...,
	)

	h := router.NewRouter(router.Dependencies{
		AuthHandler:  handler.NewAuthHandler(cfg, accounts, sessions, security.NewCookieManager(false)),
		UserHandler:  handler.NewUserHandler(users),
		AdminHandler: handler.NewAdminHandler(users),
		Sessions:     sessions,
		Users:        users,
		RateLimiter:  middleware.NewRateLimiter(limiter, "memory", "/api/auth"),
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL:  srv.URL,
		client:   newClient(t),
		db:       db,
		notifier: notifier,
		users:    users,
	}
}

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.OpenDSN(database.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, clientIP string) (*http.Response, apiEnvelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.baseURL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if clientIP == "" {
		clientIP = "203.0.113.10"
	}
	req.Header.Set("X-Forwarded-For", clientIP)
	req.Header.Set("User-Agent", "integration-test")
	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var env apiEnvelope
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode envelope: %v body=%q", err, raw)
		}
	}
	return resp, env
}

func (s *testServer) register(t *testing.T, email string) *http.Response {
	t.Helper()
	resp, _ := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email":           email,
		"password":        validPassword,
		"confirmPassword": validPassword,
		"name":            "Integration User",
	}, "")
	return resp
}

func (s *testServer) login(t *testing.T, email, password string) (*http.Response, apiEnvelope) {
	t.Helper()
	return s.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
}

// verifyLatest follows the link from the most recent notification.
func (s *testServer) verifyLatest(t *testing.T) *http.Response {
	t.Helper()
	link, err := url.Parse(s.notifier.Last(t).VerificationURL)
	if err != nil {
		t.Fatalf("parse verification url: %v", err)
	}
	resp, _ := s.do(t, http.MethodGet, link.RequestURI(), nil, "")
	return resp
}

func (s *testServer) registerVerified(t *testing.T, email string) {
	t.Helper()
	if resp := s.register(t, email); resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d", email, resp.StatusCode)
	}
	if resp := s.verifyLatest(t); resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("verify %s: expected 303, got %d", email, resp.StatusCode)
	}
}

func (s *testServer) user(t *testing.T, email string) domain.User {
	t.Helper()
	var u domain.User
	if err := s.db.Where("email = ?", email).First(&u).Error; err != nil {
		t.Fatalf("load user %s: %v", email, err)
	}
	return u
}

func (s *testServer) auditCount(t *testing.T, action domain.AuditAction) int64 {
	t.Helper()
	var n int64
	if err := s.db.Model(&domain.AuditLog{}).Where("action = ?", action).Count(&n).Error; err != nil {
		t.Fatalf("count audit logs: %v", err)
	}
	return n
}
