package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/domain"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/repository"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/security"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/service"
)

type stubUserSvc struct {
	users map[string]*domain.User
}

func (s *stubUserSvc) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	return u, nil
}

func (s *stubUserSvc) RequireAdmin(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != domain.RoleAdmin {
		return nil, service.ErrNotAdmin
	}
	return u, nil
}

func (s *stubUserSvc) List(context.Context, repository.PageRequest) (repository.PageResult[domain.User], error) {
	return repository.PageResult[domain.User]{}, nil
}

func (s *stubUserSvc) ListAuditLogs(context.Context, repository.AuditLogQuery) ([]domain.AuditLog, error) {
	return nil, nil
}

func sessionCookie(t *testing.T, sessions *security.SessionManager, userID string, role domain.Role) *http.Cookie {
	t.Helper()
	token, _, err := sessions.Issue(security.SessionSubject{UserID: userID, Email: userID + "@reichmanjorgensen.com", Role: string(role)})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return &http.Cookie{Name: security.SessionCookieName, Value: token}
}

func TestSessionAuth(t *testing.T) {
	sessions := security.NewSessionManager("0123456789abcdef0123456789abcdef", time.Hour)
	var gotSubject string
	h := SessionAuth(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Fatal("claims missing from context")
		}
		gotSubject = claims.Subject
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing cookie: expected 401, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: "garbage"})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad cookie: expected 401, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(sessionCookie(t, sessions, "u-1", domain.RoleUser))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || gotSubject != "u-1" {
		t.Fatalf("valid cookie: status=%d subject=%q", rr.Code, gotSubject)
	}
}

func TestRequireAdminUsesStoredRole(t *testing.T) {
	sessions := security.NewSessionManager("0123456789abcdef0123456789abcdef", time.Hour)
	users := &stubUserSvc{users: map[string]*domain.User{
		"admin-1":  {ID: "admin-1", Role: domain.RoleAdmin},
		"demoted":  {ID: "demoted", Role: domain.RoleUser},
		"member-1": {ID: "member-1", Role: domain.RoleUser},
	}}
	h := SessionAuth(sessions)(RequireAdmin(users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AdminFromContext(r.Context()); !ok {
			t.Fatal("admin missing from context")
		}
		w.WriteHeader(http.StatusOK)
	})))

	cases := []struct {
		name  string
		id    string
		claim domain.Role
		want  int
	}{
		{"admin", "admin-1", domain.RoleAdmin, http.StatusOK},
		{"stale admin claim", "demoted", domain.RoleAdmin, http.StatusForbidden},
		{"member", "member-1", domain.RoleUser, http.StatusForbidden},
		{"deleted user", "ghost", domain.RoleAdmin, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
			req.AddCookie(sessionCookie(t, sessions, tc.id, tc.claim))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
		})
	}
}
