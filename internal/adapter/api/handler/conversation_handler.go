package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"jiranbackend/internal/usecase"
	"jiranbackend/pkg/response"
)

type ConversationHandler struct {
	messagingUsecase *usecase.MessagingUsecase
}

func NewConversationHandler(messagingUsecase *usecase.MessagingUsecase) *ConversationHandler {
	return &ConversationHandler{
		messagingUsecase: messagingUsecase,
	}
}

type createConversationRequest struct {
	SellerID       string `json:"seller_id" validate:"required"`
	ProductID      string `json:"product_id"`
	InitialMessage string `json:"initial_message"`
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required"`
	Type    string `json:"type" validate:"omitempty,oneof=text image system offer"`
}

func (h *ConversationHandler) CreateConversation(c echo.Context) error {
	var req createConversationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	conversation, err := h.messagingUsecase.CreateConversation(c.Request().Context(), userID, usecase.CreateConversationInput{
		SellerID:       req.SellerID,
		ProductID:      req.ProductID,
		InitialMessage: req.InitialMessage,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, conversation)
}

func (h *ConversationHandler) ListConversations(c echo.Context) error {
	userID := c.Get("uid").(string)
	limit, offset := pagination(c)

	conversations, total, err := h.messagingUsecase.ListConversations(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, conversations, total, limit, offset)
}

func (h *ConversationHandler) GetConversation(c echo.Context) error {
	userID := c.Get("uid").(string)

	conversation, err := h.messagingUsecase.GetConversation(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, conversation)
}

func (h *ConversationHandler) ListMessages(c echo.Context) error {
	userID := c.Get("uid").(string)
	limit, offset := pagination(c)

	messages, total, err := h.messagingUsecase.ListMessages(c.Request().Context(), userID, c.Param("id"), limit, offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, messages, total, limit, offset)
}

func (h *ConversationHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	message, err := h.messagingUsecase.SendMessage(c.Request().Context(), userID, usecase.SendMessageInput{
		ConversationID: c.Param("id"),
		Content:        req.Content,
		Type:           req.Type,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

func (h *ConversationHandler) MarkRead(c echo.Context) error {
	userID := c.Get("uid").(string)

	receipt, err := h.messagingUsecase.MarkRead(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, receipt)
}

func (h *ConversationHandler) ArchiveConversation(c echo.Context) error {
	userID := c.Get("uid").(string)

	if err := h.messagingUsecase.ArchiveConversation(c.Request().Context(), userID, c.Param("id")); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]bool{"archived": true})
}

func (h *ConversationHandler) TypingUsers(c echo.Context) error {
	userID := c.Get("uid").(string)

	if _, err := h.messagingUsecase.GetConversation(c.Request().Context(), userID, c.Param("id")); err != nil {
		return response.Error(c, err)
	}

	typing, err := h.messagingUsecase.TypingUsers(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{"typing": typing})
}

func pagination(c echo.Context) (limit, offset int) {
	limit = 20
	offset = 0

	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
