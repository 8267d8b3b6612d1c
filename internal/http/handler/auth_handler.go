package handler

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/config"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/http/middleware"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/http/response"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/observability"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/security"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/service"
)

type registerRequest struct {
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"password" validate:"required,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,max=72"`
	Name            string `json:"name" validate:"omitempty,max=255"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

type identityView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type AuthHandler struct {
	accounts       service.AccountSecurityServiceInterface
	sessions       *security.SessionManager
	cookieMgr      *security.CookieManager
	allowedDomain  string
	lockout        time.Duration
	signInRedirect string
}

func NewAuthHandler(cfg *config.Config, accounts service.AccountSecurityServiceInterface, sessions *security.SessionManager, cookieMgr *security.CookieManager) *AuthHandler {
	return &AuthHandler{
		accounts:       accounts,
		sessions:       sessions,
		cookieMgr:      cookieMgr,
		allowedDomain:  cfg.AuthAllowedEmailDomain,
		lockout:        cfg.AuthLockoutDuration,
		signInRedirect: cfg.AuthSignInRedirectURL,
	}
}

func requestMeta(r *http.Request) service.RequestMeta {
	return service.RequestMeta{IP: middleware.ClientIP(r), UserAgent: r.UserAgent()}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "register", status, time.Since(start))
	}()

	var req registerRequest
	if details, err := decodeJSON(r, &req); err != nil {
		status = "rejected"
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid registration request", details)
		return
	}
	reg, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Name:            req.Name,
		RequestMeta:     requestMeta(r),
	})
	if err != nil {
		status = statusLabel(err)
		observability.Audit(r, "auth.register.failed", "reason", err.Error())
		writeServiceError(w, r, err, h.allowedDomain, h.lockout)
		return
	}
	observability.Audit(r, "auth.register.succeeded", "user_id", reg.UserID)
	response.JSON(w, r, http.StatusCreated, map[string]any{
		"email":   reg.Email,
		"message": "Registration successful. Check your email to verify your account.",
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "login", status, time.Since(start))
	}()

	var req loginRequest
	if details, err := decodeJSON(r, &req); err != nil {
		status = "rejected"
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid login request", details)
		return
	}
	id, err := h.accounts.Authenticate(r.Context(), service.AuthenticateInput{
		Email:       req.Email,
		Password:    req.Password,
		RequestMeta: requestMeta(r),
	})
	if err != nil {
		status = statusLabel(err)
		observability.Audit(r, "auth.login.failed", "reason", err.Error())
		writeServiceError(w, r, err, h.allowedDomain, h.lockout)
		return
	}

	token, expires, err := h.sessions.Issue(security.SessionSubject{
		UserID: id.ID,
		Email:  id.Email,
		Name:   id.Name,
		Role:   string(id.Role),
	})
	if err != nil {
		status = "error"
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "Internal server error", nil)
		return
	}
	h.cookieMgr.SetSessionCookie(w, token, expires, h.sessions.TTL())
	observability.Audit(r, "auth.login.succeeded", "user_id", id.ID)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user":       viewIdentity(id),
		"expires_at": expires,
	})
}

// Verify is the link target in the verification email. It always redirects
// to the sign-in page.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "verify", status, time.Since(start))
	}()

	q := r.URL.Query()
	err := h.accounts.VerifyEmail(r.Context(), service.VerifyEmailInput{
		Email:       q.Get("email"),
		Token:       q.Get("token"),
		RequestMeta: requestMeta(r),
	})
	params := url.Values{}
	if err != nil {
		status = statusLabel(err)
		observability.Audit(r, "auth.verify.failed", "reason", err.Error())
		params.Set("error", "invalid_token")
	} else {
		observability.Audit(r, "auth.verify.succeeded")
		params.Set("verified", "true")
	}
	http.Redirect(w, r, withQuery(h.signInRedirect, params), http.StatusSeeOther)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookieMgr.ClearSessionCookie(w)
	observability.Audit(r, "auth.logout")
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}

func viewIdentity(id *service.Identity) identityView {
	return identityView{ID: id.ID, Email: id.Email, Name: id.Name, Role: string(id.Role)}
}

func withQuery(base string, params url.Values) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + params.Encode()
}
