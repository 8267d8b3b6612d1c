package integration

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/domain"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/security"
)

func TestRegisterVerifyLoginSessionLogout(t *testing.T) {
	s := newTestServer(t)
	email := "jdoe" + orgDomain

	resp := s.register(t, email)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}
	u := s.user(t, email)
	if u.IsVerified() || u.VerificationTokenHash == nil || u.VerificationExpiresAt == nil {
		t.Fatalf("expected unverified user with pending token, got %+v", u)
	}
	n := s.notifier.Last(t)
	if n.Email != email || !strings.Contains(n.VerificationURL, "/api/auth/verify?") {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if got := s.auditCount(t, domain.AuditUserRegistration); got != 1 {
		t.Fatalf("expected one registration audit, got %d", got)
	}

	// Unverified login is refused without touching the counter.
	resp, env := s.login(t, email, validPassword)
	if resp.StatusCode != http.StatusForbidden || env.Error == nil || env.Error.Code != "EMAIL_NOT_VERIFIED" {
		t.Fatalf("expected 403 EMAIL_NOT_VERIFIED, got %d %+v", resp.StatusCode, env.Error)
	}
	if got := s.user(t, email).FailedLoginAttempts; got != 0 {
		t.Fatalf("expected no counter change, got %d", got)
	}

	resp = s.verifyLatest(t)
	if resp.StatusCode != http.StatusSeeOther || !strings.Contains(resp.Header.Get("Location"), "verified=true") {
		t.Fatalf("verify: expected 303 to verified=true, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	u = s.user(t, email)
	if !u.IsVerified() || u.VerificationTokenHash != nil {
		t.Fatalf("expected verified user with token cleared, got %+v", u)
	}

	// The token is single use.
	resp = s.verifyLatest(t)
	if !strings.Contains(resp.Header.Get("Location"), "error=invalid_token") {
		t.Fatalf("expected reused token to fail, got %q", resp.Header.Get("Location"))
	}

	resp, env = s.login(t, email, validPassword)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("login: expected 200, got %d %+v", resp.StatusCode, env.Error)
	}
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == security.SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly || cookie.Value == "" {
		t.Fatalf("expected http-only session cookie, got %+v", cookie)
	}
	if u := s.user(t, email); u.LastLoginAt == nil || u.LastLoginIP != "203.0.113.10" {
		t.Fatalf("expected last login recorded, got at=%v ip=%q", u.LastLoginAt, u.LastLoginIP)
	}

	resp, env = s.do(t, http.MethodGet, "/api/auth/session", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session: expected 200, got %d", resp.StatusCode)
	}
	var session struct {
		User struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.User.Email != email || session.User.Role != string(domain.RoleUser) {
		t.Fatalf("unexpected session user: %+v", session.User)
	}

	resp, _ = s.do(t, http.MethodPost, "/api/auth/logout", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", resp.StatusCode)
	}
	resp, _ = s.do(t, http.MethodGet, "/api/auth/session", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("session after logout: expected 401, got %d", resp.StatusCode)
	}
}

func TestRegisterDuplicateAndPasswordRules(t *testing.T) {
	s := newTestServer(t)
	email := "dup" + orgDomain
	if resp := s.register(t, email); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first register: expected 201, got %d", resp.StatusCode)
	}
	if resp := s.register(t, strings.ToUpper(email)); resp.StatusCode != http.StatusConflict {
		t.Fatalf("case-variant duplicate: expected 409, got %d", resp.StatusCode)
	}

	resp, env := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email":           "weak" + orgDomain,
		"password":        "short",
		"confirmPassword": "short",
	}, "")
	if resp.StatusCode != http.StatusBadRequest || env.Error == nil || env.Error.Code != "WEAK_PASSWORD" {
		t.Fatalf("expected 400 WEAK_PASSWORD, got %d %+v", resp.StatusCode, env.Error)
	}

	resp, env = s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email":           "mismatch" + orgDomain,
		"password":        validPassword,
		"confirmPassword": validPassword + "x",
	}, "")
	if resp.StatusCode != http.StatusBadRequest || env.Error == nil || env.Error.Code != "PASSWORD_MISMATCH" {
		t.Fatalf("expected 400 PASSWORD_MISMATCH, got %d %+v", resp.StatusCode, env.Error)
	}

	var count int64
	if err := s.db.Model(&domain.User{}).Count(&count).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the first account to exist, got %d", count)
	}
}

func TestRegisterDeliveryFailureRemovesAccount(t *testing.T) {
	s := newTestServer(t)
	s.notifier.setFail(errDeliveryDown)
	email := "undeliverable" + orgDomain

	resp, env := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email":           email,
		"password":        validPassword,
		"confirmPassword": validPassword,
	}, "")
	if resp.StatusCode != http.StatusBadGateway || env.Error == nil || env.Error.Code != "DELIVERY_FAILED" {
		t.Fatalf("expected 502 DELIVERY_FAILED, got %d %+v", resp.StatusCode, env.Error)
	}
	var count int64
	if err := s.db.Model(&domain.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 0 {
		t.Fatal("expected account to be removed after delivery failure")
	}

	s.notifier.setFail(nil)
	if resp := s.register(t, email); resp.StatusCode != http.StatusCreated {
		t.Fatalf("retry register: expected 201, got %d", resp.StatusCode)
	}
}
