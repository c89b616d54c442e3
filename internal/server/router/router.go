package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/staffops/internal/server/handlers"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// New wires the Gin engine with required routes and middlewares.
func New(handler *handlers.DashboardHandler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/backend/health", handler.BackendHealth)

	api.GET("/overview", handler.Overview)
	api.POST("/overview/refresh", handler.RefreshOverview)

	inbox := api.Group("/inbox")
	inbox.GET("", handler.Inbox)
	inbox.POST("/refresh", handler.RefreshInbox)
	inbox.POST("/process-all", handler.ProcessAllEmails)
	inbox.POST("/:id/process", handler.ProcessEmail)

	ts := api.Group("/timesheets")
	ts.GET("", handler.Timesheets)
	ts.POST("/refresh", handler.RefreshTimesheets)
	ts.GET("/:id", handler.TimesheetDetail)
	ts.GET("/:id/entries", handler.TimesheetEntries)

	rates := api.Group("/rates")
	rates.GET("", handler.Rates)
	rates.POST("", handler.CreateRate)
	rates.POST("/refresh", handler.RefreshRates)
	rates.POST("/preview", handler.PreviewRate)
	rates.PUT("/:id", handler.UpdateRate)
	rates.DELETE("/:id", handler.DeleteRate)

	inv := api.Group("/invoices")
	inv.GET("", handler.Invoices)
	inv.POST("/refresh", handler.RefreshInvoices)
	inv.POST("/selection/all", handler.SelectAllInvoices)
	inv.POST("/selection/:id", handler.ToggleInvoiceSelection)
	inv.DELETE("/selection", handler.ClearInvoiceSelection)
	inv.POST("/generate", handler.GenerateInvoice)
	inv.POST("/:id/validate", handler.ValidateInvoice)

	api.GET("/activity", handler.Activities)
	api.GET("/reports/invoices", handler.InvoiceReport)

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
