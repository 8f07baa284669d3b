package api

import (
	"jamu-quote-bot/backend/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// RegisterQuoteRoutes wires the quote and migration endpoints onto a Gin
// engine.
func RegisterQuoteRoutes(r *gin.Engine, handler *QuoteHandler) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	quoteGroup := r.Group("/quotes")
	{
		quoteGroup.POST("", handler.CreateQuote)
		quoteGroup.GET("", handler.ListQuotes)
		quoteGroup.GET("/search", handler.SearchQuotes)
		quoteGroup.GET("/random", handler.RandomQuote)
		quoteGroup.GET("/export", handler.ExportQuotes)
		quoteGroup.GET("/count", handler.CountQuotes)
		quoteGroup.GET("/:id", handler.GetQuote)
		quoteGroup.DELETE("/:id", handler.DeleteQuote)
	}

	r.POST("/migrations", handler.RunMigration)
}
