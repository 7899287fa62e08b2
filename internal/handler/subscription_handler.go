package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/convsync/internal/entity"
	"github.com/mbeoliero/convsync/internal/service"
	"github.com/mbeoliero/convsync/pkg/constant"
	"github.com/mbeoliero/convsync/pkg/errcode"
	"github.com/mbeoliero/convsync/pkg/response"
	"github.com/mbeoliero/kit/log"
)

// SubscriptionHandler streams one conversation to a UI over a websocket
type SubscriptionHandler struct {
	convService *service.ConversationService
	upgrader    *websocket.HertzUpgrader
}

// NewSubscriptionHandler creates a new SubscriptionHandler
func NewSubscriptionHandler(convService *service.ConversationService) *SubscriptionHandler {
	return &SubscriptionHandler{
		convService: convService,
		upgrader: &websocket.HertzUpgrader{
			// origins are already filtered by the CORS middleware
			CheckOrigin: func(*app.RequestContext) bool { return true },
		},
	}
}

// Join joins a conversation and pushes its view on every change until the client disconnects
func (h *SubscriptionHandler) Join(ctx context.Context, c *app.RequestContext) {
	conversationId := c.Query("conversation_id")
	if conversationId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}
	if _, err := h.convService.Info(ctx, conversationId); err != nil {
		response.Error(ctx, c, err)
		return
	}

	err := h.upgrader.Upgrade(c, func(conn *websocket.Conn) {
		h.serve(ctx, newViewConn(conn), conversationId)
	})
	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: conversation_id=%s, error=%v", conversationId, err)
	}
}

func (h *SubscriptionHandler) serve(ctx context.Context, conn *viewConn, conversationId string) {
	defer conn.wait()
	defer conn.Close()

	sub, err := h.convService.Join(ctx, conversationId, func(summary *entity.ConversationSummary) {
		if err := conn.push(constant.EventConversation, h.convService.View(ctx, summary)); err != nil {
			log.CtxDebug(ctx, "push view failed: conversation_id=%s, error=%v", conversationId, err)
		}
	})
	if err != nil {
		_ = conn.push(constant.EventError, errcode.From(err))
		return
	}
	defer h.convService.Leave(ctx, sub)
	log.CtxInfo(ctx, "view joined: conversation_id=%s, subscription_id=%s", conversationId, sub.Id())

	view, err := h.convService.Info(ctx, conversationId)
	if err != nil {
		_ = conn.push(constant.EventError, errcode.From(err))
		return
	}
	if err := conn.push(constant.EventConversation, view); err != nil {
		return
	}

	conn.readUntilClosed()
	log.CtxInfo(ctx, "view left: conversation_id=%s, subscription_id=%s", conversationId, sub.Id())
}
