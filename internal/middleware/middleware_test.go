package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talentshire/assessment-core/internal/config"
	"github.com/talentshire/assessment-core/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{JWTSecret: "middleware-secret", JWTExpiry: time.Hour})
}

func token(t *testing.T, auth *service.AuthService, typ service.TokenType) string {
	t.Helper()
	tok, err := auth.IssueToken(typ, uuid.New(), 0)
	require.NoError(t, err)
	return tok
}

func TestRequireBearerTokens(t *testing.T) {
	auth := newAuth()
	r := gin.New()
	r.GET("/admin", RequireAdminJWT(auth), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/candidate", RequireCandidateJWT(auth), func(c *gin.Context) {
		require.NotNil(t, GetClaims(c))
		c.Status(http.StatusNoContent)
	})
	r.GET("/internal", RequireServiceJWT(auth), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name   string
		path   string
		header string
		status int
		code   string
	}{
		{"missing header", "/admin", "", http.StatusUnauthorized, "TOKEN_REQUIRED"},
		{"garbage token", "/admin", "Bearer nope", http.StatusUnauthorized, "TOKEN_INVALID"},
		{"admin ok", "/admin", "Bearer " + token(t, auth, service.TokenTypeAdmin), http.StatusNoContent, ""},
		{"candidate on admin", "/admin", "Bearer " + token(t, auth, service.TokenTypeCandidate), http.StatusForbidden, "ADMIN_ACCESS_ONLY"},
		{"candidate ok", "/candidate", "bearer " + token(t, auth, service.TokenTypeCandidate), http.StatusNoContent, ""},
		{"service on candidate", "/candidate", "Bearer " + token(t, auth, service.TokenTypeService), http.StatusForbidden, "CANDIDATE_ACCESS_ONLY"},
		{"service ok", "/internal", "Bearer " + token(t, auth, service.TokenTypeService), http.StatusNoContent, ""},
		{"admin on internal", "/internal", "Bearer " + token(t, auth, service.TokenTypeAdmin), http.StatusForbidden, "SERVICE_ACCESS_ONLY"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.code != "" {
				assert.Contains(t, rec.Body.String(), tc.code)
			}
		})
	}
}

func TestRequireCandidateWSAuth(t *testing.T) {
	auth := newAuth()
	r := gin.New()
	r.GET("/ws", RequireCandidateWSAuth(auth), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func(query string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws"+query, nil))
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, do("").Code)
	assert.Equal(t, http.StatusUnauthorized, do("?token=bad").Code)
	assert.Equal(t, http.StatusForbidden, do("?token="+token(t, auth, service.TokenTypeAdmin)).Code)
	assert.Equal(t, http.StatusNoContent, do("?token="+token(t, auth, service.TokenTypeCandidate)).Code)
}

func TestRateLimiterPerKey(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "keys have independent buckets")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"))

	now = now.Add(visitorIdleTimeout + time.Second)
	rl.cleanup()
	rl.mu.Lock()
	assert.Empty(t, rl.visitors)
	rl.mu.Unlock()
}

func TestCandidateMiddlewareKeysByClaims(t *testing.T) {
	auth := newAuth()
	rl := NewRateLimiter(0.001, 1)

	r := gin.New()
	r.GET("/x", RequireCandidateJWT(auth), rl.CandidateMiddleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	call := func(tok string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	first := token(t, auth, service.TokenTypeCandidate)
	second := token(t, auth, service.TokenTypeCandidate)

	assert.Equal(t, http.StatusNoContent, call(first))
	assert.Equal(t, http.StatusTooManyRequests, call(first))
	assert.Equal(t, http.StatusNoContent, call(second))
}

func TestBrotliCompressesLargeBodies(t *testing.T) {
	large := strings.Repeat("assessment ", 400)

	r := gin.New()
	r.Use(Brotli())
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", func(c *gin.Context) { c.String(http.StatusOK, large) })

	get := func(path, encoding string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if encoding != "" {
			req.Header.Set("Accept-Encoding", encoding)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := get("/large", "gzip, br;q=0.9")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "br", rec.Header().Get("Content-Encoding"))
	body, err := io.ReadAll(brotli.NewReader(bytes.NewReader(rec.Body.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, large, string(body))

	rec = get("/small", "br")
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "ok", rec.Body.String())

	rec = get("/large", "gzip")
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, large, rec.Body.String())

	rec = get("/large", "gzip, br;q=0")
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, large, rec.Body.String())

	rec = get("/metrics", "br")
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
}

func TestAcceptsBrotliQValues(t *testing.T) {
	tests := []struct {
		header string
		want   bool
	}{
		{"br", true},
		{"gzip, br;q=0.9", true},
		{"BR; q=1.0", true},
		{"br;q=0", false},
		{"gzip, br;q=0.000", false},
		{"br;level=5", true},
		{"br;q=oops", true},
		{"gzip, deflate", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept-Encoding", tt.header)
			assert.Equal(t, tt.want, acceptsBrotli(req))
		})
	}
}
