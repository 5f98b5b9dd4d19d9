package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/alpha-framework/alpha/internal/config"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/alpha-framework/alpha/internal/security"
	"github.com/alpha-framework/alpha/internal/service"
	"github.com/alpha-framework/alpha/internal/session"
	"github.com/alpha-framework/alpha/internal/unitofwork"
	"github.com/alpha-framework/alpha/internal/view"
	"github.com/alpha-framework/alpha/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ArticleWizard is the unit of work that creates an article in three steps.
const ArticleWizard = "article-wizard"

// NewRouter creates and configures the Gin router
func NewRouter(services *service.Services, sessions *session.Manager, cfg *config.Config, log zerolog.Logger) (*gin.Engine, error) {
	tokens, err := security.NewTokenizer(cfg.Security.Secret)
	if err != nil {
		return nil, err
	}
	views, err := view.New(tokens, view.Site{
		Title:       cfg.Site.Title,
		Description: cfg.Site.Description,
		URL:         cfg.Site.URL,
	})
	if err != nil {
		return nil, err
	}
	wizard, err := unitofwork.New(ArticleWizard, "details", "tags", "confirm")
	if err != nil {
		return nil, err
	}

	pages := &pages{views: views, cfg: cfg}
	log = log.With().Str("component", "http").Logger()

	router := gin.New()

	// Middleware
	router.Use(recoveryMiddleware(pages, log))
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware())
	router.Use(sessionMiddleware(sessions, log))
	router.Use(errorMiddleware(pages, log))
	router.Use(tokenMiddleware(tokens))
	router.Use(personMiddleware(services.Person, log))

	// Handlers
	articleHandler := NewArticleHandler(services, pages, tokens, log)
	authHandler := NewAuthHandler(services, sessions, pages, log)
	adminHandler := NewAdminHandler(services, pages, log)
	recordHandler := NewRecordHandler(services, cfg, log)
	exportHandler := NewExportHandler(services, log)
	wizardHandler := NewWizardHandler(services, wizard, pages, log)

	// Health check
	router.GET("/health", healthCheck)
	router.GET("/metrics", metricsHandler(services))

	// HTML pages
	router.GET("/", articleHandler.Index)
	router.GET("/tags", articleHandler.Tags)
	router.GET("/search", articleHandler.Search)
	router.GET("/feeds/rss", articleHandler.Feed)
	router.GET("/feeds/atom", articleHandler.Feed)

	router.GET("/login", authHandler.LoginForm)
	router.POST("/login", authHandler.Login)
	router.POST("/logout", authHandler.Logout)

	articles := router.Group("/articles")
	{
		articles.GET("/new", requireRights(models.RightsStandard), articleHandler.New)
		articles.POST("", requireRights(models.RightsStandard), articleHandler.Create)
		articles.GET("/:slug", articleHandler.Show)
		articles.GET("/:slug/pdf", requireToken(), articleHandler.PDF)
		articles.GET("/:slug/edit", requireRights(models.RightsStandard), articleHandler.Edit)
		articles.POST("/:slug", requireRights(models.RightsStandard), articleHandler.Update)
		articles.POST("/:slug/delete", requireRights(models.RightsAdmin), articleHandler.Delete)
		articles.POST("/:slug/comments", requireLogin(), articleHandler.Comment)
	}
	router.POST("/comments/:id/delete", requireRights(models.RightsAdmin), articleHandler.DeleteComment)

	admin := router.Group("/admin", requireRights(models.RightsAdmin))
	{
		admin.GET("/logs", adminHandler.Logs)
		admin.POST("/cache/clear", adminHandler.ClearCache)
		admin.GET("/records/:type", adminHandler.ListRecords)
		admin.GET("/records/:type/:id", adminHandler.ShowRecord)
	}

	uow := router.Group("/uow/"+ArticleWizard, requireRights(models.RightsStandard))
	{
		uow.GET("", wizardHandler.Begin)
		uow.GET("/:step", wizardHandler.Step)
		uow.POST("/:step", wizardHandler.Submit)
	}

	// API v1
	v1 := router.Group("/v1", jsonAPI())
	{
		v1.POST("/login", authHandler.LoginJSON)
		v1.POST("/logout", authHandler.LogoutJSON)
		v1.POST("/register", authHandler.Register)
		v1.GET("/me", requireLogin(), authHandler.Me)

		records := v1.Group("/records", requireRights(models.RightsAdmin))
		{
			records.GET("", recordHandler.Types)
			records.GET("/:type", recordHandler.List)
			records.POST("/:type", recordHandler.Create)
			records.GET("/:type/:id", recordHandler.Get)
			records.PUT("/:type/:id", recordHandler.Update)
			records.DELETE("/:type/:id", recordHandler.Delete)
		}

		v1.GET("/denums/:name", recordHandler.GetDEnum)
		v1.PUT("/denums/:name", requireRights(models.RightsAdmin), recordHandler.ReplaceDEnum)
		v1.POST("/sequences/:prefix/next", requireRights(models.RightsStandard), recordHandler.NextSequence)
		v1.POST("/articles/:slug/publish", requireRights(models.RightsStandard), recordHandler.Publish)

		people := v1.Group("/people", requireRights(models.RightsAdmin))
		{
			people.PUT("/:id/rights", recordHandler.ChangeRights)
			people.POST("/:id/disable", recordHandler.DisablePerson)
		}

		v1.GET("/logs", requireRights(models.RightsAdmin), adminHandler.LogsJSON)
		v1.POST("/maintenance/run", requireRights(models.RightsAdmin), adminHandler.RunMaintenance)

		// Export endpoints
		exports := v1.Group("/exports", requireRights(models.RightsAdmin))
		{
			exports.GET("", exportHandler.StreamExport)
			exports.POST("", exportHandler.CreateExport)
			exports.GET("/:job_id", exportHandler.GetExportStatus)
			exports.GET("/:job_id/download", exportHandler.Download)
		}
		v1.GET("/workbook", requireRights(models.RightsAdmin), exportHandler.Workbook)
	}

	router.NoRoute(func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("%s %s: %w", c.Request.Method, c.Request.URL.Path, errNoRoute))
	})

	return router, nil
}

// healthCheck returns the health status
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   logger.ServiceName,
	})
}

// metricsHandler returns record counts per exportable resource
func metricsHandler(services *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		peopleCount, _ := services.Export.GetCount(ctx, models.ResourcePeople)
		articlesCount, _ := services.Export.GetCount(ctx, models.ResourceArticles)
		commentsCount, _ := services.Export.GetCount(ctx, models.ResourceComments)

		c.JSON(http.StatusOK, gin.H{
			"database": gin.H{
				"people":   peopleCount,
				"articles": articlesCount,
				"comments": commentsCount,
			},
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}
