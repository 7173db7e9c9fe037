package router

import (
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/polkiloo/invoicekeeper/internal/config"
	"github.com/polkiloo/invoicekeeper/internal/server/http/handlers"
	"github.com/polkiloo/invoicekeeper/internal/server/http/middleware"
)

// Setup configures gin router with handlers and middleware.
func Setup(facade handlers.InvoiceFacade, cfg *config.Config, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.DecompressRequest())
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	invoiceHandler := handlers.NewInvoiceHandler(facade, cfg.ExpireMinutes)
	maintenanceHandler := handlers.NewMaintenanceHandler(facade)

	api := engine.Group("/api")
	api.GET("/health", maintenanceHandler.Health)

	invoices := api.Group("/invoices")
	invoices.GET("", invoiceHandler.CreatedBetween)
	invoices.POST("/generate/:orderId", invoiceHandler.Generate)
	invoices.GET("/order/:orderId", invoiceHandler.ByOrder)
	invoices.DELETE("/order/:orderId", maintenanceHandler.Purge)
	invoices.GET("/customer/:customerId", invoiceHandler.ByCustomer)
	invoices.GET("/check/:orderId", invoiceHandler.Check)
	invoices.GET("/stats", maintenanceHandler.Stats)
	invoices.DELETE("/cleanup-expired", maintenanceHandler.CleanupExpired)

	return engine
}
