package session

import (
	"net/http"
	"strings"
	"time"
)

// DefaultCookieName is the base session cookie name.
const DefaultCookieName = "jef_jwe_session"

const (
	securePrefix = "__Secure-"
	hostPrefix   = "__Host-"
)

// CookieConfig describes how the session cookie is written.
type CookieConfig struct {
	Name string
	// Domain is applied only when DevMode is false.
	Domain string
	// DevMode drops the Secure flag and the Domain attribute.
	DevMode bool
}

func (c CookieConfig) baseName() string {
	if n := strings.TrimSpace(c.Name); n != "" {
		return n
	}
	return DefaultCookieName
}

// CookieNames lists the names searched for a token, in priority order.
func CookieNames(base string) []string {
	if strings.TrimSpace(base) == "" {
		base = DefaultCookieName
	}
	return []string{base, securePrefix + base, hostPrefix + base}
}

// TokenFromRequest returns the first non-empty session cookie value.
func TokenFromRequest(r *http.Request, base string) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, name := range CookieNames(base) {
		c, err := r.Cookie(name)
		if err != nil {
			continue
		}
		if v := strings.TrimSpace(c.Value); v != "" {
			return v, true
		}
	}
	return "", false
}

// NewCookie builds the session cookie for token.
func NewCookie(cfg CookieConfig, token string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     cfg.baseName(),
		Value:    token,
		Path:     "/",
		Expires:  expires.UTC(),
		HttpOnly: true,
		Secure:   !cfg.DevMode,
		SameSite: http.SameSiteLaxMode,
	}
	if !cfg.DevMode {
		c.Domain = strings.TrimSpace(cfg.Domain)
	}
	return c
}

// ExpiredCookies returns deletion cookies for the base name and both hardened
// variants.
func ExpiredCookies(cfg CookieConfig) []*http.Cookie {
	base := cfg.baseName()
	plain := NewCookie(cfg, "", time.Unix(0, 0))
	plain.MaxAge = -1

	secure := NewCookie(cfg, "", time.Unix(0, 0))
	secure.Name = securePrefix + base
	secure.Secure = true
	secure.MaxAge = -1

	host := NewCookie(cfg, "", time.Unix(0, 0))
	host.Name = hostPrefix + base
	host.Secure = true
	host.Domain = ""
	host.MaxAge = -1

	return []*http.Cookie{plain, secure, host}
}
