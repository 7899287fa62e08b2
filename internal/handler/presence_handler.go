package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/convsync/internal/service"
	"github.com/mbeoliero/convsync/pkg/errcode"
	"github.com/mbeoliero/convsync/pkg/response"
)

// PresenceHandler handles presence requests
type PresenceHandler struct {
	convService *service.ConversationService
}

// NewPresenceHandler creates a new PresenceHandler
func NewPresenceHandler(convService *service.ConversationService) *PresenceHandler {
	return &PresenceHandler{convService: convService}
}

// PresenceResponse represents a user's presence
type PresenceResponse struct {
	UserId   string `json:"user_id"`
	IsOnline bool   `json:"is_online"`
}

// GetPresence handles get presence request
func (h *PresenceHandler) GetPresence(ctx context.Context, c *app.RequestContext) {
	userId := c.Query("user_id")
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	response.Success(ctx, c, &PresenceResponse{UserId: userId, IsOnline: h.convService.IsOnline(userId)})
}
