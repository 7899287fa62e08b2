package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/convsync/internal/service"
	"github.com/mbeoliero/convsync/pkg/errcode"
	"github.com/mbeoliero/convsync/pkg/response"
)

// DraftHandler handles draft requests
type DraftHandler struct {
	convService *service.ConversationService
}

// NewDraftHandler creates a new DraftHandler
func NewDraftHandler(convService *service.ConversationService) *DraftHandler {
	return &DraftHandler{convService: convService}
}

// DraftResponse represents a conversation draft
type DraftResponse struct {
	ConversationId string `json:"conversation_id"`
	Text           string `json:"text"`
}

// GetDraft handles get draft request
func (h *DraftHandler) GetDraft(ctx context.Context, c *app.RequestContext) {
	conversationId := c.Query("conversation_id")
	if conversationId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	text, err := h.convService.Draft(ctx, conversationId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, &DraftResponse{ConversationId: conversationId, Text: text})
}

// SaveDraftRequest represents save draft request
type SaveDraftRequest struct {
	ConversationId string `json:"conversation_id"`
	Text           string `json:"text"`
}

// SaveDraft handles save draft request
func (h *DraftHandler) SaveDraft(ctx context.Context, c *app.RequestContext) {
	var req SaveDraftRequest
	if err := c.BindAndValidate(&req); err != nil || req.ConversationId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	if err := h.convService.SaveDraft(ctx, req.ConversationId, req.Text); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, &DraftResponse{ConversationId: req.ConversationId, Text: req.Text})
}

// DeleteDraft handles delete draft request
func (h *DraftHandler) DeleteDraft(ctx context.Context, c *app.RequestContext) {
	conversationId := c.Query("conversation_id")
	if conversationId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	if err := h.convService.ClearDraft(ctx, conversationId); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}
