package httpx

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	accessTokenCookie  = "accesstoken"
	refreshTokenCookie = "refreshtoken"

	// The refresh cookie is scoped to the refresh endpoint so the
	// long-lived token is not sent with every request.
	refreshCookiePath = "/auth/refresh"
)

// CookieWriter sets and clears the auth cookies with consistent
// attributes. Secure forces the Secure flag in production; outside
// production it is still set when the request arrived over HTTPS.
type CookieWriter struct {
	Domain     string
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func requestIsSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func (c CookieWriter) secureFor(r *http.Request) bool {
	return c.Secure || requestIsSecure(r)
}

// SetAuthCookies writes the access and refresh token cookies.
func (c CookieWriter) SetAuthCookies(w http.ResponseWriter, r *http.Request, access, refresh string) {
	c.SetAccessCookie(w, r, access)
	c.SetRefreshCookie(w, r, refresh)
}

// SetAccessCookie writes only the access token cookie. Used by local
// login without rememberMe, which skips the refresh cookie.
func (c CookieWriter) SetAccessCookie(w http.ResponseWriter, r *http.Request, access string) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    access,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   c.secureFor(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(c.AccessTTL.Seconds()),
	})
}

// SetRefreshCookie writes only the refresh token cookie.
func (c CookieWriter) SetRefreshCookie(w http.ResponseWriter, r *http.Request, refresh string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    refresh,
		Path:     refreshCookiePath,
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   c.secureFor(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(c.RefreshTTL.Seconds()),
	})
}

// ClearAuthCookies expires both auth cookies. Attributes mirror the
// ones used when setting so browsers actually delete them.
func (c CookieWriter) ClearAuthCookies(w http.ResponseWriter, r *http.Request) {
	isSecure := c.secureFor(r)
	for _, spec := range []struct {
		name string
		path string
	}{
		{accessTokenCookie, "/"},
		{refreshTokenCookie, refreshCookiePath},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     spec.name,
			Value:    "",
			Path:     spec.path,
			Domain:   c.Domain,
			HttpOnly: true,
			Secure:   isSecure,
			MaxAge:   -1,
			Expires:  time.Unix(0, 0).UTC(),
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// sanitizeReturnURL accepts a relative path or an absolute http(s)
// URL and rejects everything else (javascript:, protocol-relative,
// malformed). Returns "" when unusable.
func sanitizeReturnURL(candidate string) string {
	if candidate == "" {
		return ""
	}
	if strings.HasPrefix(candidate, "//") {
		return ""
	}
	u, err := url.Parse(candidate)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		if u.Scheme != "http" && u.Scheme != "https" {
			return ""
		}
		return candidate
	}
	if !strings.HasPrefix(u.Path, "/") {
		return ""
	}
	return candidate
}

// withTokenParam appends the access token as a query parameter to the
// return URL for the post-login redirect.
func withTokenParam(returnURL, token string) string {
	u, err := url.Parse(returnURL)
	if err != nil {
		return returnURL
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
