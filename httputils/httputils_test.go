package httputils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetRequestInfo(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		realIP  string
		proxies []string
		reqID   string
	}{
		{"forwarded", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2", "X-Request-Id": "r-1"}, "10.0.0.1", []string{"10.0.0.2"}, "r-1"},
		{"direct", nil, "", []string{"192.0.2.1"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			ctx, ri := SetRequestInfo(r.Context(), r, "v1")
			assert.Equal(t, tt.realIP, ri.RealIP)
			assert.Equal(t, tt.proxies, ri.ProxyIPs)
			assert.Equal(t, "v1", ri.AppVersion)
			if tt.reqID != "" {
				assert.Equal(t, tt.reqID, ri.RequestID)
			} else {
				assert.True(t, strings.HasPrefix(ri.RequestID, "ac-"))
			}

			got, ok := GetRequestInfo(ctx)
			require.True(t, ok)
			assert.Equal(t, ri, got)
		})
	}
}

func TestRequestInfoMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(RequestInfoMiddleware("v1"))
	e.GET("/", func(c echo.Context) error {
		ri, ok := GetRequestInfo(c.Request().Context())
		require.True(t, ok)
		return c.String(http.StatusOK, ri.RequestID)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "r-42")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "r-42", rec.Body.String())
	assert.Equal(t, "r-42", rec.Header().Get("X-Request-Id"))
}

func TestRunDebugMux(t *testing.T) {
	rec := httptest.NewRecorder()
	RunDebugMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
