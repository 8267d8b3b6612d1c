package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestSessionManagerIssueAndParse(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mgr := NewSessionManager(testSecret, 8*time.Hour)
	mgr.now = func() time.Time { return now }

	token, expires, err := mgr.Issue(SessionSubject{UserID: "u-1", Email: "a@reichmanjorgensen.com", Name: "A", Role: "admin"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !expires.Equal(now.Add(8 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", expires)
	}

	claims, err := mgr.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "u-1" || claims.Email != "a@reichmanjorgensen.com" || claims.Role != "admin" || claims.Name != "A" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestSessionManagerRejectsInvalidTokens(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mgr := NewSessionManager(testSecret, time.Hour)
	mgr.now = func() time.Time { return now }
	token, _, err := mgr.Issue(SessionSubject{UserID: "u-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other := NewSessionManager(strings.Repeat("z", 32), time.Hour)
	other.now = mgr.now
	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "u-1",
		Issuer:    sessionIssuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	cases := []struct {
		name  string
		mgr   *SessionManager
		token string
		at    time.Time
	}{
		{name: "garbage", mgr: mgr, token: "not-a-jwt", at: now},
		{name: "wrong secret", mgr: other, token: token, at: now},
		{name: "expired", mgr: mgr, token: token, at: now.Add(2 * time.Hour)},
		{name: "alg none", mgr: mgr, token: noneToken, at: now},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			at := tc.at
			tc.mgr.now = func() time.Time { return at }
			if _, err := tc.mgr.Parse(tc.token); !errors.Is(err, ErrInvalidSession) {
				t.Fatalf("expected ErrInvalidSession, got %v", err)
			}
		})
	}
}
