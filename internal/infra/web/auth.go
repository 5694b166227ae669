package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ===== Browser session cookie =====
// The cookie only identifies a browser; chat state stays server side.

type AuthConfig struct {
	HMACSecret   []byte
	CookieName   string
	SecureCookie bool
	TTL          time.Duration
}

type SessionManager struct{ cfg AuthConfig }

// NewSessionManager signs cookies with secret. An empty secret gets a random
// per-process one, so cookies do not survive a restart.
func NewSessionManager(secret, cookieName string, secure bool, ttl time.Duration) *SessionManager {
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
	}
	if cookieName == "" {
		cookieName = "maizey_session"
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SessionManager{cfg: AuthConfig{
		HMACSecret:   []byte(secret),
		CookieName:   cookieName,
		SecureCookie: secure,
		TTL:          ttl,
	}}
}

type BrowserClaims struct {
	jwt.RegisteredClaims
}

// Mint issues a cookie for a new browser id and returns the id.
func (a *SessionManager) Mint(w http.ResponseWriter) (string, error) {
	now := time.Now()
	browserID := uuid.NewString()
	claims := BrowserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.TTL)),
			Subject:   browserID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.cfg.HMACSecret)
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(a.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return browserID, nil
}

func (a *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *SessionManager) ParseFromRequest(r *http.Request) (*BrowserClaims, error) {
	c, err := r.Cookie(a.cfg.CookieName)
	if err != nil {
		return nil, errors.New("missing session cookie")
	}
	return a.parse(c.Value)
}

func (a *SessionManager) parse(tok string) (*BrowserClaims, error) {
	claims := &BrowserClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.cfg.HMACSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return nil, errors.New("invalid session cookie")
	}
	return claims, nil
}

type ctxKey struct{}

// Identify attaches the browser id to the request, minting a cookie when the
// request has none or an invalid one.
func (a *SessionManager) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if claims, err := a.ParseFromRequest(r); err == nil {
			id = claims.Subject
		} else {
			minted, err := a.Mint(w)
			if err != nil {
				http.Error(w, "session error", http.StatusInternalServerError)
				return
			}
			id = minted
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// BrowserID returns the id set by Identify.
func BrowserID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
