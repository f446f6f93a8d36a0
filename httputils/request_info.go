package httputils

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type ctxKey int

const (
	requestInfoCtxKey ctxKey = iota
)

// SetRequestInfo returns a new context with set (or re-set) RequestInfo.
func SetRequestInfo(ctx context.Context, r *http.Request, appVersion string) (out context.Context, res RequestInfo) {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ipsl := strings.Split(xff, ", ")
		res.RealIP = ipsl[0]
		if len(ipsl) > 1 {
			res.ProxyIPs = ipsl[1:]
		}
	}
	res.UserAgent = r.UserAgent()
	res.DeviceID = r.Header.Get("Device-Id")
	res.RequestID = r.Header.Get("X-Request-Id")

	if res.RealIP == "" && r.RemoteAddr != "" {
		res.ProxyIPs = []string{strings.Split(r.RemoteAddr, ":")[0]}
	}

	if res.RequestID == "" {
		res.RequestID = appCreatedRequestID()
	}
	res.AppVersion = appVersion

	out = context.WithValue(ctx, requestInfoCtxKey, res)

	return out, res
}

// GetRequestInfo returns RequestInfo from the context.
func GetRequestInfo(ctx context.Context) (res RequestInfo, ok bool) {
	res, ok = ctx.Value(requestInfoCtxKey).(RequestInfo)
	return
}

// RequestInfoMiddleware attaches RequestInfo to every request and logs it.
func RequestInfoMiddleware(appVersion string) echo.MiddlewareFunc {
	l := zap.L().Named("http")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx, ri := SetRequestInfo(req.Context(), req, appVersion)
			c.SetRequest(req.WithContext(ctx))
			c.Response().Header().Set("X-Request-Id", ri.RequestID)

			start := time.Now()
			err := next(c)
			l.Debug("Request.",
				zap.String("request_id", ri.RequestID),
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
			return err
		}
	}
}

// RequestInfo holds the metadata of a request.
type RequestInfo struct {
	RealIP     string
	ProxyIPs   []string
	DeviceID   string
	UserAgent  string
	RequestID  string
	AppVersion string
}

func (ri RequestInfo) FirstProxyIP() string {
	if len(ri.ProxyIPs) > 0 {
		return ri.ProxyIPs[0]
	}
	return ""
}

// application created
// ac-2006-01-02T15:04:05.000-XXX###XXX
func appCreatedRequestID() string {
	return "ac-" + time.Now().Format("2006-01-02T15:04:05.000") + randString(9)
}

func randString(len int) string {
	b := make([]byte, len)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
