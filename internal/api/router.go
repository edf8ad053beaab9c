// Package api wires the dialect handlers, the caller-auth and IP-guard
// middleware, and the request logger into one gin.Engine.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cliforge/codeassist-gateway/internal/api/handlers"
	"github.com/cliforge/codeassist-gateway/internal/api/middleware"
	"github.com/cliforge/codeassist-gateway/internal/config"
	"github.com/cliforge/codeassist-gateway/internal/ipguard"
	"github.com/cliforge/codeassist-gateway/internal/logging"
)

// RouterConfig bundles everything NewRouter needs to assemble routes.
type RouterConfig struct {
	Config        *config.Config
	Handler       *handlers.Handler
	Guard         *ipguard.Guard
	RequestLogger logging.RequestLogger
	LocalImageDir string // non-empty when imagesink.New chose a LocalSink
	LogTail       *logging.LogTailHub
}

// NewRouter builds the gateway's gin.Engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	engine := gin.New()
	engine.Use(logging.GinLogrusRecovery(), logging.GinLogrusLogger())
	if cfg.RequestLogger != nil {
		engine.Use(middleware.RequestLoggingMiddleware(cfg.RequestLogger))
	}
	engine.Use(middleware.IPGuard(cfg.Guard))

	engine.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.LocalImageDir != "" {
		engine.Static("/images", cfg.LocalImageDir)
	}

	authed := engine.Group("/")
	authed.Use(middleware.APIKeyAuth(cfg.Config.APIKeys))

	h := cfg.Handler
	authed.GET("/v1/models", h.OpenAIModels)
	authed.POST("/v1/chat/completions", h.OpenAIChatCompletions)

	authed.GET("/v1/messages/models", h.ClaudeModels)
	authed.POST("/v1/messages", h.ClaudeMessages)
	authed.POST("/v1/messages/count_tokens", h.ClaudeCountTokens)

	authed.GET("/v1beta/models", h.GeminiModels)
	authed.GET("/v1beta/models/*action", h.GeminiGetModel)
	authed.POST("/v1beta/models/*action", h.GeminiGenerate)

	authed.GET("/admin/status", h.AdminStatus)
	if cfg.LogTail != nil {
		authed.GET("/ws/logs", gin.WrapH(cfg.LogTail))
	}

	return engine
}
