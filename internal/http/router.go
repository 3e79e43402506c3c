package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/faqbridge/faqbridge-backend/internal/http/handlers"
	httpMW "github.com/faqbridge/faqbridge-backend/internal/http/middleware"
	"github.com/faqbridge/faqbridge-backend/internal/observability"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	HealthHandler *httpH.HealthHandler
	SearchHandler *httpH.SearchHandler
	RAGHandler    *httpH.RAGHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("faqbridge-backend"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.CORS())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))

	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	if cfg.SearchHandler != nil {
		r.GET("/search", cfg.SearchHandler.Search)
		r.GET("/ask", cfg.SearchHandler.Ask)
	}
	if cfg.RAGHandler != nil {
		r.POST("/rag/query", cfg.RAGHandler.Query)
	}

	return r
}
