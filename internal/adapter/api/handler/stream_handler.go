package handler

import (
	"github.com/labstack/echo/v4"

	"jiranbackend/internal/usecase"
	"jiranbackend/pkg/response"
)

type StreamHandler struct {
	engagementUsecase *usecase.EngagementUsecase
}

func NewStreamHandler(engagementUsecase *usecase.EngagementUsecase) *StreamHandler {
	return &StreamHandler{
		engagementUsecase: engagementUsecase,
	}
}

type startStreamRequest struct {
	Title     string `json:"title" validate:"required"`
	ProductID string `json:"product_id"`
}

func (h *StreamHandler) StartStream(c echo.Context) error {
	var req startStreamRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	stream, err := h.engagementUsecase.StartStream(c.Request().Context(), userID, usecase.StartStreamInput{
		Title:     req.Title,
		ProductID: req.ProductID,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, stream)
}

func (h *StreamHandler) EndStream(c echo.Context) error {
	userID := c.Get("uid").(string)

	stats, err := h.engagementUsecase.EndStream(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, stats)
}

func (h *StreamHandler) GetStream(c echo.Context) error {
	stream, err := h.engagementUsecase.GetStream(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, stream)
}

func (h *StreamHandler) GetStats(c echo.Context) error {
	stats, err := h.engagementUsecase.Stats(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, stats)
}

func (h *StreamHandler) RecentChat(c echo.Context) error {
	messages, err := h.engagementUsecase.RecentChat(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, messages)
}

func (h *StreamHandler) ListLiveStreams(c echo.Context) error {
	streamIDs, err := h.engagementUsecase.LiveStreams(c.Request().Context())
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{"live": streamIDs})
}
