package security

import (
	"net/http"
	"time"
)

const SessionCookieName = "session_token"

type CookieManager struct {
	Secure   bool
	SameSite http.SameSite
}

func NewCookieManager(secure bool) *CookieManager {
	return &CookieManager{Secure: secure, SameSite: http.SameSiteLaxMode}
}

func (m *CookieManager) SetSessionCookie(w http.ResponseWriter, token string, expires time.Time, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: m.SameSite,
	})
}

func (m *CookieManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: m.SameSite,
	})
}

func GetCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
