package main

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vuldin/socrev-cms/internal/content"
	"github.com/vuldin/socrev-cms/internal/links"
	"github.com/vuldin/socrev-cms/internal/provider/wordpress"
	"github.com/vuldin/socrev-cms/internal/redirects"
	"github.com/vuldin/socrev-cms/internal/store"
	"github.com/vuldin/socrev-cms/internal/tags"
	"github.com/vuldin/socrev-cms/internal/transform"
	"github.com/vuldin/socrev-cms/internal/worker"
	"github.com/vuldin/socrev-cms/pkg/config"
	"github.com/vuldin/socrev-cms/pkg/logging"
	"github.com/vuldin/socrev-cms/pkg/monitoring"
	"github.com/vuldin/socrev-cms/pkg/server"
	"github.com/vuldin/socrev-cms/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("primer")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Primer (CMS Mirror Sync)")

	// === Configuration Loading ===
	// WordPress config
	wpConfig, err := wordpress.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load WordPress configuration")
	}
	wpClient := wordpress.NewClientFromConfig(wpConfig)

	dbCtrlURL := config.RequireEnv("DB_CTRL_URL")
	destClient := store.NewClient(dbCtrlURL)
	redirectClient := redirects.NewClient(dbCtrlURL)

	legacyHost := config.GetEnv("LEGACY_HOST", "socialistappeal.org")
	cmsHost := config.GetEnv("CMS_HOST", hostOf(wpConfig.BaseURL))

	// === Pipeline Initialization ===
	linkResolver := links.NewResolver(wpClient, redirectClient, links.Config{
		LegacyHost: legacyHost,
		CMSHost:    cmsHost,
	}, logger)
	parser := content.NewParser(linkResolver, logger)
	tagResolver := tags.NewResolver(wpClient, logger)
	transformer := transform.NewTransformer(wpClient, redirectClient, parser, tagResolver, logger)

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("primer", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("primer", version.Version, version.GitCommit)
	syncMetrics := worker.NewMetrics(metricsCollector)

	// === Background Worker ===
	interval := time.Duration(config.GetEnvInt("REFRESH_TIMER", 300)) * time.Second
	syncController := worker.NewSyncController(wpClient, destClient, tagResolver, transformer, logger, interval, syncMetrics)
	go syncController.Start(context.Background())

	healthChecker.AddCheck("dbctrl", monitoring.HTTPServiceHealthCheck("dbctrl", dbCtrlURL+"/latest"))
	healthChecker.AddCheck("configuration", monitoring.ConfigurationHealthCheck(map[string]string{
		"CMS_URL":     wpConfig.BaseURL,
		"DB_CTRL_URL": dbCtrlURL,
	}))

	// === HTTP Server ===
	serverConfig := server.DefaultConfig("primer", config.GetEnv("PORT", "8090"))

	app := server.SetupServiceRouter(logger, "primer", healthChecker, metricsCollector)
	app.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "running",
			"version":    version.Version,
			"last_cycle": syncController.Status(),
		})
	})

	if err := server.Start(serverConfig, app, logger); err != nil {
		logger.WithError(err).Fatal("Primer HTTP server failed")
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
