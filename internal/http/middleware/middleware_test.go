package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/faqbridge/faqbridge-backend/internal/platform/ctxutil"
)

func init() { gin.SetMode(gin.TestMode) }

func TestAttachTraceContextGeneratesIDs(t *testing.T) {
	r := gin.New()
	r.Use(AttachTraceContext())
	var seen *ctxutil.TraceData
	r.GET("/", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == nil || seen.TraceID == "" || seen.RequestID == "" {
		t.Fatalf("trace data: %+v", seen)
	}
	if w.Header().Get("X-Trace-Id") != seen.TraceID {
		t.Fatalf("trace header: want=%q got=%q", seen.TraceID, w.Header().Get("X-Trace-Id"))
	}
}

func TestAttachTraceContextKeepsCallerIDs(t *testing.T) {
	r := gin.New()
	r.Use(AttachTraceContext())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("request id: want=req-123 got=%q", got)
	}
}

func TestAttachRequestContextReadsIdentityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(AttachRequestContext())
	var seen *ctxutil.RequestData
	r.GET("/", func(c *gin.Context) {
		seen = ctxutil.GetRequestData(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", "u1")
	req.Header.Set("X-Session-Id", "s1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if seen == nil || seen.UserID != "u1" || seen.SessionID != "s1" {
		t.Fatalf("request data: %+v", seen)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	r := gin.New()
	r.Use(CORS())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow origin: %q", got)
	}
}
