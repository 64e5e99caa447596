package httppresentation

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apporder "github.com/ThierryFotabong/feeya/internal/application/order"
	domorder "github.com/ThierryFotabong/feeya/internal/domain/order"
)

func (h *Handler) GetOrder(c *gin.Context) {
	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()

	t, err := h.Orders.Track(ctx, customerID(c), c.Param("orderId"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderBody(t.Order, t.Events))
}

func (h *Handler) GetOrderStatus(c *gin.Context) {
	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()

	v, err := h.Orders.Status(ctx, customerID(c), c.Param("orderId"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type advanceReq struct {
	Status string `json:"status" binding:"required"`
}

// AdvanceOrder is the back-office signal; the token subject is recorded as the actor.
func (h *Handler) AdvanceOrder(c *gin.Context) {
	var req advanceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()

	o, err := h.Orders.Advance(ctx, apporder.AdvanceInput{
		OrderID: c.Param("orderId"),
		Target:  domorder.Status(req.Status),
		Actor:   customerID(c),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, apporder.ViewOf(o))
}
