package httppresentation

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ThierryFotabong/feeya/internal/observability"
)

// NewRouter wires each route behind Trace → request logger → metrics → access log.
func NewRouter(h *Handler, authz *Authz, tel observability.Observability, metrics http.Handler) *gin.Engine {
	if tel == nil {
		tel = observability.Nop()
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		withTrace(),
		withRequestLogger(tel.Logger()),
		withHTTPMetrics(tel),
		withAccessLog(h.log),
	)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := r.Group("/v1")
	{
		basket := v1.Group("/basket", authz.Identify())
		basket.GET("", h.GetBasket)
		basket.POST("/lines", h.AddLine)
		basket.PATCH("/lines/:lineId", h.SetLineQuantity)
		basket.DELETE("/lines/:lineId", h.RemoveLine)

		v1.GET("/delivery/quote", authz.Identify(), h.QuoteDelivery)
		v1.POST("/addresses", authz.RequireCustomer(), h.RegisterAddress)

		checkout := v1.Group("/checkout/intents", authz.RequireCustomer())
		checkout.POST("", h.CreateIntent)
		checkout.GET("/:intentId", h.IntentStatus)
		checkout.POST("/:intentId/confirm", h.ConfirmIntent)

		orders := v1.Group("/orders", authz.RequireCustomer())
		orders.GET("/:orderId", h.GetOrder)
		orders.GET("/:orderId/status", h.GetOrderStatus)

		v1.POST("/webhooks/payments", h.PaymentWebhook)

		admin := v1.Group("/admin")
		admin.POST("/orders/:orderId/status", authz.Require(PermOrdersWrite), h.AdvanceOrder)
		admin.POST("/products/:productId/restock", authz.Require(PermCatalogWrite), h.RestockProduct)
		admin.PUT("/products/:productId", authz.Require(PermCatalogWrite), h.PutProduct)
	}
	return r
}
