package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
)

const SessionCookie = "mines_session"

type Cookies struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
	jwt      *JWT
}

func parseSameSite(s string) (http.SameSite, error) {
	switch strings.ToUpper(s) {
	case "DEFAULT":
		return http.SameSiteDefaultMode, nil
	case "LAX":
		return http.SameSiteLaxMode, nil
	case "STRICT":
		return http.SameSiteStrictMode, nil
	case "NONE":
		return http.SameSiteNoneMode, nil
	}
	return 0, fmt.Errorf("unknown COOKIES_SAMESITE value %q", s)
}

func NewCookies(jwt *JWT) (*Cookies, error) {
	cookies := &Cookies{
		Domain:   os.Getenv("COOKIES_DOMAIN"),
		Secure:   os.Getenv("COOKIES_SECURE") != "0",
		SameSite: http.SameSiteStrictMode,
		jwt:      jwt,
	}

	if sameSiteStr, ok := os.LookupEnv("COOKIES_SAMESITE"); ok {
		sameSite, err := parseSameSite(sameSiteStr)
		if err != nil {
			return nil, err
		}
		cookies.SameSite = sameSite
	}

	return cookies, nil
}

func (c *Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Path:     "/",
		Value:    "delete",
		MaxAge:   -1,
		HttpOnly: true,
		Domain:   c.Domain,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

// Grant signs a token for gameSessionId, stores it in the session cookie and
// returns it for clients that prefer the Authorization header.
func (c *Cookies) Grant(w http.ResponseWriter, gameSessionId int64) (string, error) {
	token, err := c.jwt.Sign(c.jwt.NewSessionClaims(gameSessionId))
	if err != nil {
		return "", fmt.Errorf("unable to sign session token: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Path:     "/",
		Value:    token,
		MaxAge:   int(c.jwt.tokenLifetime.Seconds()),
		HttpOnly: true,
		Domain:   c.Domain,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
	return token, nil
}

// ParseSessionClaims reads a bearer token, or the session cookie when there
// is no Authorization header.
func (c *Cookies) ParseSessionClaims(r *http.Request) (*SessionClaims, error) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			return nil, fmt.Errorf("malformed Authorization header")
		}
		return c.jwt.ParseSessionClaims(token)
	}
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, err
	}
	return c.jwt.ParseSessionClaims(cookie.Value)
}
