package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		url    string
		want   string
	}{
		{"bearer header", map[string]string{"Authorization": "Bearer abc"}, "/", "abc"},
		{"lowercase scheme", map[string]string{"Authorization": "bearer abc"}, "/", "abc"},
		{"token header", map[string]string{"Token": "xyz"}, "/", "xyz"},
		{"query", nil, "/?token=q1", "q1"},
		{"bearer wins over query", map[string]string{"Authorization": "Bearer abc"}, "/?token=q1", "abc"},
		{"basic auth ignored", map[string]string{"Authorization": "Basic Zm9vOmJhcg=="}, "/", ""},
		{"nothing", nil, "/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, BearerToken(req))
		})
	}
}

func TestAPIAuth(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		token    string
		wantCode int
	}{
		{"valid", "secret", "secret", http.StatusOK},
		{"missing", "secret", "", http.StatusUnauthorized},
		{"wrong", "secret", "nope", http.StatusUnauthorized},
		{"unconfigured key", "", "anything", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			require.NoError(t, APIAuth(tt.apiKey)(okHandler)(c))
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestCORS(t *testing.T) {
	e := echo.New()
	mw := CORS([]string{"http://localhost:3000"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	require.NoError(t, mw(okHandler)(e.NewContext(req, rec)))
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	require.NoError(t, mw(okHandler)(e.NewContext(req, rec)))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	rec = httptest.NewRecorder()
	require.NoError(t, mw(okHandler)(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestCORS_AnyOrigin(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, CORS(nil)(okHandler)(e.NewContext(req, rec)))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, RequestLogger(zap.NewNop())(okHandler)(e.NewContext(req, rec)))
	assert.Equal(t, "ok", rec.Body.String())
}
