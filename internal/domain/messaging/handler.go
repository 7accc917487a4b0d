package messaging

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentalhub/dentalhub/internal/platform/apperr"
	"github.com/dentalhub/dentalhub/internal/platform/auth"
	"github.com/dentalhub/dentalhub/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireUser())
	g.POST("/conversations", h.GetOrCreateConversation)
	g.GET("/conversations", h.ListConversations)
	g.GET("/conversations/:id/messages", h.ListMessages)
	g.POST("/conversations/:id/messages", h.SendMessage)
	g.POST("/conversations/:id/read", h.MarkRead)
	g.PATCH("/conversations/:id/settings", h.UpdateSettings)
	g.PATCH("/messages/:id", h.EditMessage)
	g.DELETE("/messages/:id", h.DeleteMessage)
}

func currentUser(c echo.Context) (uuid.UUID, error) {
	uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, apperr.Unauthorized("authentication required")
	}
	return uid, nil
}

// requestIDs returns the caller and the :id path parameter.
func requestIDs(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	uid, err := currentUser(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, apperr.Validation("id", "invalid id")
	}
	return uid, id, nil
}

type conversationRequest struct {
	ParticipantID   string          `json:"participantId"`
	ParticipantKind ParticipantKind `json:"participantKind"`
}

type conversationResponse struct {
	Success      bool          `json:"success"`
	Conversation *Conversation `json:"conversation"`
}

func (h *Handler) GetOrCreateConversation(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var req conversationRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("participantId", "invalid request body")
	}
	if req.ParticipantID == "" {
		return apperr.Validation("participantId", "participantId is required")
	}
	conv, err := h.svc.GetOrCreateConversation(c.Request().Context(), uid,
		ParticipantRef{Kind: req.ParticipantKind, ID: req.ParticipantID})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, conversationResponse{Success: true, Conversation: conv})
}

func (h *Handler) ListConversations(c echo.Context) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	pg := pagination.PageFromContext(c, pagination.DefaultLimit)
	items, total, err := h.svc.ListConversations(c.Request().Context(), uid, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Conversation{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ListMessages(c echo.Context) error {
	uid, convID, err := requestIDs(c)
	if err != nil {
		return err
	}
	pg := pagination.PageFromContext(c, DefaultMessageLimit)
	items, total, err := h.svc.ListMessages(c.Request().Context(), convID, uid, pg.Page, pg.Limit)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Message{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

type sendMessageRequest struct {
	Content     string       `json:"content"`
	MessageType string       `json:"messageType"`
	ReplyToID   *uuid.UUID   `json:"replyToId"`
	Attachments []Attachment `json:"attachments"`
}

func (h *Handler) SendMessage(c echo.Context) error {
	uid, convID, err := requestIDs(c)
	if err != nil {
		return err
	}
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("content", "invalid request body")
	}
	msg, err := h.svc.SendMessage(c.Request().Context(), SendMessageInput{
		ConversationID: convID,
		SenderID:       uid,
		Content:        req.Content,
		Type:           req.MessageType,
		ReplyToID:      req.ReplyToID,
		Attachments:    req.Attachments,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, msg)
}

type markReadRequest struct {
	MessageIDs []uuid.UUID `json:"messageIds"`
}

func (h *Handler) MarkRead(c echo.Context) error {
	uid, convID, err := requestIDs(c)
	if err != nil {
		return err
	}
	var req markReadRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return apperr.Validation("messageIds", "invalid request body")
		}
	}
	n, err := h.svc.MarkRead(c.Request().Context(), convID, uid, req.MessageIDs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "updated": n})
}

type settingsRequest struct {
	IsPinned *bool `json:"isPinned"`
	IsMuted  *bool `json:"isMuted"`
}

func (h *Handler) UpdateSettings(c echo.Context) error {
	uid, convID, err := requestIDs(c)
	if err != nil {
		return err
	}
	var req settingsRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("isPinned", "invalid request body")
	}
	p, err := h.svc.UpdateParticipantSettings(c.Request().Context(), convID, uid, req.IsPinned, req.IsMuted)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

type editMessageRequest struct {
	Content string `json:"content"`
}

func (h *Handler) EditMessage(c echo.Context) error {
	uid, msgID, err := requestIDs(c)
	if err != nil {
		return err
	}
	var req editMessageRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("content", "invalid request body")
	}
	msg, err := h.svc.EditMessage(c.Request().Context(), msgID, uid, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msg)
}

func (h *Handler) DeleteMessage(c echo.Context) error {
	uid, msgID, err := requestIDs(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMessage(c.Request().Context(), msgID, uid); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
