package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/domain"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/http/response"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/observability"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/repository"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/service"
)

type adminUserView struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	Name                string     `json:"name"`
	Role                string     `json:"role"`
	EmailVerified       bool       `json:"email_verified"`
	FailedLoginAttempts int        `json:"failed_login_attempts"`
	Locked              bool       `json:"locked"`
	LockedUntil         *time.Time `json:"locked_until,omitempty"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP         string     `json:"last_login_ip,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

type AdminHandler struct {
	userSvc service.UserServiceInterface
	now     func() time.Time
}

func NewAdminHandler(userSvc service.UserServiceInterface) *AdminHandler {
	return &AdminHandler{userSvc: userSvc, now: time.Now}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAdminListRequestDuration(r.Context(), "users", status, time.Since(start))
	}()

	pageReq, err := parsePageRequest(r)
	if err != nil {
		status = "rejected"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	page, err := h.userSvc.List(r.Context(), pageReq)
	if err != nil {
		status = "error"
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to list users", nil)
		return
	}
	now := h.now()
	items := make([]adminUserView, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, viewAdminUser(&page.Items[i], now))
	}
	response.JSON(w, r, http.StatusOK, paginatedData(items, page.Page, page.PageSize, page.Total, page.TotalPages))
}

func (h *AdminHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAdminListRequestDuration(r.Context(), "audit_logs", status, time.Since(start))
	}()

	q, err := parseAuditQuery(r)
	if err != nil {
		status = "rejected"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	logs, err := h.userSvc.ListAuditLogs(r.Context(), q)
	if err != nil {
		status = "error"
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to list audit logs", nil)
		return
	}
	if logs == nil {
		logs = []domain.AuditLog{}
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"items": logs, "limit": q.Limit})
}

func viewAdminUser(u *domain.User, now time.Time) adminUserView {
	_, locked := u.LockedAt(now)
	return adminUserView{
		ID:                  u.ID,
		Email:               u.Email,
		Name:                u.Name,
		Role:                string(u.Role),
		EmailVerified:       u.IsVerified(),
		FailedLoginAttempts: u.FailedLoginAttempts,
		Locked:              locked,
		LockedUntil:         u.LockedUntil,
		LastLoginAt:         u.LastLoginAt,
		LastLoginIP:         u.LastLoginIP,
		CreatedAt:           u.CreatedAt,
	}
}

var auditActions = map[domain.AuditAction]struct{}{
	domain.AuditUserRegistration:  {},
	domain.AuditLoginSuccess:      {},
	domain.AuditLoginFailed:       {},
	domain.AuditLoginLocked:       {},
	domain.AuditLoginUnverified:   {},
	domain.AuditEmailVerification: {},
	domain.AuditAdminPromotion:    {},
	domain.AuditAccountUnlock:     {},
}

func parseAuditQuery(r *http.Request) (repository.AuditLogQuery, error) {
	q := repository.AuditLogQuery{Limit: repository.DefaultAuditLimit}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return repository.AuditLogQuery{}, errors.New("limit must be a positive integer")
		}
		if v > repository.MaxAuditLimit {
			v = repository.MaxAuditLimit
		}
		q.Limit = v
	}
	if raw := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("action"))); raw != "" {
		action := domain.AuditAction(raw)
		if _, ok := auditActions[action]; !ok {
			return repository.AuditLogQuery{}, fmt.Errorf("invalid action: %s", raw)
		}
		q.Action = action
	}
	q.UserID = strings.TrimSpace(r.URL.Query().Get("user_id"))
	return q, nil
}

func parsePageRequest(r *http.Request) (repository.PageRequest, error) {
	page := repository.DefaultPage
	pageSize := repository.DefaultPageSize
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return repository.PageRequest{}, errors.New("page must be a positive integer")
		}
		page = v
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("page_size")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return repository.PageRequest{}, errors.New("page_size must be a positive integer")
		}
		if v > repository.MaxPageSize {
			return repository.PageRequest{}, fmt.Errorf("page_size must be <= %d", repository.MaxPageSize)
		}
		pageSize = v
	}
	return repository.PageRequest{Page: page, PageSize: pageSize}, nil
}

func paginatedData[T any](items []T, page, pageSize int, total int64, totalPages int) map[string]any {
	return map[string]any{
		"items": items,
		"pagination": map[string]any{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": totalPages,
		},
	}
}
