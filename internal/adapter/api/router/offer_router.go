package router

import (
	"github.com/labstack/echo/v4"

	"jiranbackend/internal/adapter/api/handler"
	"jiranbackend/internal/adapter/api/middleware"
)

func SetupOfferRouter(e *echo.Echo, offerHandler *handler.OfferHandler, authMiddleware *middleware.AuthMiddleware) {
	group := e.Group("/v1/offers")
	group.Use(authMiddleware.Authenticate)

	group.POST("", offerHandler.CreateOffer)
	group.GET("", offerHandler.ListMyOffers)
	group.GET("/:id", offerHandler.GetOffer)
	group.POST("/:id/accept", offerHandler.AcceptOffer)
	group.POST("/:id/decline", offerHandler.DeclineOffer)
	group.POST("/:id/counter", offerHandler.CounterOffer)
	group.POST("/:id/cancel", offerHandler.CancelOffer)

	// The rolling feed is public read
	e.GET("/v1/products/:id/offer-feed", offerHandler.ProductFeed)
}
