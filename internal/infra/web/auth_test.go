//go:build !integration

package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintAndParse(t *testing.T) {
	sm := NewSessionManager("secret", "sess", false, time.Hour)
	rec := httptest.NewRecorder()
	id, err := sm.Mint(rec)
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sess", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	claims, err := sm.ParseFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, id, claims.Subject)
}

func TestParseRejectsForeignSignature(t *testing.T) {
	rec := httptest.NewRecorder()
	_, err := NewSessionManager("one", "sess", false, time.Hour).Mint(rec)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	_, err = NewSessionManager("two", "sess", false, time.Hour).ParseFromRequest(req)
	assert.Error(t, err)
}

func TestParseMissingCookie(t *testing.T) {
	_, err := NewSessionManager("s", "", false, 0).ParseFromRequest(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Error(t, err)
}

func TestIdentifyKeepsValidCookie(t *testing.T) {
	sm := NewSessionManager("s", "sess", false, time.Hour)
	var seen string
	h := sm.Identify(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = BrowserID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	first := seen
	require.NotEmpty(t, first)
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, first, seen)
	assert.Empty(t, rec.Result().Cookies(), "valid cookie must not be re-minted")
}

func TestClearExpiresCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	NewSessionManager("s", "sess", false, time.Hour).Clear(rec)
	c := rec.Result().Cookies()[0]
	assert.Equal(t, -1, c.MaxAge)
}

func TestStateRegistrySweep(t *testing.T) {
	reg := NewStateRegistry(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	a := reg.Get("a")
	assert.Same(t, a, reg.Get("a"))
	reg.Get("b")

	now = now.Add(45 * time.Second)
	reg.Get("b")
	now = now.Add(30 * time.Second)

	assert.Equal(t, 1, reg.Sweep())
	assert.Equal(t, 1, reg.Len())
	assert.NotSame(t, a, reg.Get("a"))
}
