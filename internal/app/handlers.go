package app

import (
	"github.com/faqbridge/faqbridge-backend/internal/data/db"
	httpx "github.com/faqbridge/faqbridge-backend/internal/http"
	httpH "github.com/faqbridge/faqbridge-backend/internal/http/handlers"
	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
)

func wireHandlers(log *logger.Logger, pg *db.PostgresService, clients Clients, services Services) httpx.RouterConfig {
	log.Info("Wiring handlers...")
	return httpx.RouterConfig{
		Log:     log,
		Metrics: services.Metrics,

		HealthHandler: httpH.NewHealthHandler(log, pg, clients.KV, clients.Vectors),
		SearchHandler: httpH.NewSearchHandler(log, services.Retrieval, services.Generator),
		RAGHandler:    httpH.NewRAGHandler(log, services.Graph),
	}
}
