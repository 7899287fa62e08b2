package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/mbeoliero/convsync/internal/config"
	"github.com/mbeoliero/convsync/internal/handler"
	"github.com/mbeoliero/convsync/internal/middleware"
)

// SetupRouter sets up all routes
func SetupRouter(h *server.Hertz, cfg *config.Config, handlers *Handlers) {
	// CORS middleware
	h.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	// Health check
	h.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, map[string]string{"status": "ok"})
	})

	auth := middleware.TokenAuth(cfg.Server.APIToken)

	// Conversation routes
	convGroup := h.Group("/conversation", auth)
	{
		convGroup.GET("/list", handlers.Conversation.GetConversationList)
		convGroup.GET("/info", handlers.Conversation.GetConversation)
		convGroup.POST("/viewed", handlers.Conversation.Viewed)
		convGroup.GET("/join", handlers.Subscription.Join)
	}

	// Draft routes
	draftGroup := h.Group("/draft", auth)
	{
		draftGroup.GET("", handlers.Draft.GetDraft)
		draftGroup.PUT("", handlers.Draft.SaveDraft)
		draftGroup.DELETE("", handlers.Draft.DeleteDraft)
	}

	// Presence routes
	h.GET("/presence", auth, handlers.Presence.GetPresence)
}

// Handlers holds all HTTP handlers
type Handlers struct {
	Conversation *handler.ConversationHandler
	Draft        *handler.DraftHandler
	Presence     *handler.PresenceHandler
	Subscription *handler.SubscriptionHandler
}
