package handler

import (
	"github.com/labstack/echo/v4"

	"jiranbackend/internal/usecase"
	"jiranbackend/pkg/response"
)

type OfferHandler struct {
	offerUsecase *usecase.OfferUsecase
}

func NewOfferHandler(offerUsecase *usecase.OfferUsecase) *OfferHandler {
	return &OfferHandler{
		offerUsecase: offerUsecase,
	}
}

type createOfferRequest struct {
	ProductID    string  `json:"product_id" validate:"required"`
	OfferedPrice float64 `json:"offered_price" validate:"required,gt=0"`
	Message      string  `json:"message"`
}

type counterOfferRequest struct {
	CounterPrice float64 `json:"counter_price" validate:"required,gt=0"`
}

func (h *OfferHandler) CreateOffer(c echo.Context) error {
	var req createOfferRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	offer, err := h.offerUsecase.Create(c.Request().Context(), userID, usecase.CreateOfferInput{
		ProductID:    req.ProductID,
		OfferedPrice: req.OfferedPrice,
		Message:      req.Message,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, offer)
}

func (h *OfferHandler) GetOffer(c echo.Context) error {
	userID := c.Get("uid").(string)

	offer, err := h.offerUsecase.GetByID(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, offer)
}

func (h *OfferHandler) ListMyOffers(c echo.Context) error {
	userID := c.Get("uid").(string)
	limit, offset := pagination(c)

	offers, total, err := h.offerUsecase.ListByUser(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, offers, total, limit, offset)
}

func (h *OfferHandler) AcceptOffer(c echo.Context) error {
	userID := c.Get("uid").(string)

	offer, err := h.offerUsecase.Accept(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, offer)
}

func (h *OfferHandler) DeclineOffer(c echo.Context) error {
	userID := c.Get("uid").(string)

	offer, err := h.offerUsecase.Decline(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, offer)
}

func (h *OfferHandler) CounterOffer(c echo.Context) error {
	var req counterOfferRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	offer, err := h.offerUsecase.Counter(c.Request().Context(), userID, usecase.CounterOfferInput{
		OfferID:      c.Param("id"),
		CounterPrice: req.CounterPrice,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, offer)
}

func (h *OfferHandler) CancelOffer(c echo.Context) error {
	userID := c.Get("uid").(string)

	offer, err := h.offerUsecase.Cancel(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, offer)
}

func (h *OfferHandler) ProductFeed(c echo.Context) error {
	feed, err := h.offerUsecase.ProductFeed(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, feed)
}
