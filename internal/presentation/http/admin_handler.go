package httppresentation

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ThierryFotabong/feeya/internal/application"
	appinventory "github.com/ThierryFotabong/feeya/internal/application/inventory"
	dominv "github.com/ThierryFotabong/feeya/internal/domain/inventory"
	"github.com/ThierryFotabong/feeya/internal/pkg/money"
)

type productResp struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      string    `json:"size,omitempty"`
	UnitPrice int64     `json:"unitPrice"`
	Price     string    `json:"price"`
	Available bool      `json:"available"`
	OnHand    int       `json:"onHand"`
	Reserved  int       `json:"reserved"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func productBody(p *dominv.Product) productResp {
	return productResp{
		ID:        p.ID,
		Name:      p.Name,
		Size:      p.Size,
		UnitPrice: p.UnitPrice,
		Price:     money.Format(p.UnitPrice),
		Available: p.Available,
		OnHand:    p.OnHand,
		Reserved:  p.Reserved,
		UpdatedAt: p.UpdatedAt,
	}
}

type restockReq struct {
	Quantity int `json:"quantity" binding:"required"`
}

func (h *Handler) RestockProduct(c *gin.Context) {
	var req restockReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()

	p, err := h.Catalog.Restock(ctx, c.Param("productId"), req.Quantity)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, productBody(p))
}

// putProductReq with only "available" set toggles sellability; with a name it upserts.
type putProductReq struct {
	Name      string `json:"name"`
	Size      string `json:"size"`
	Price     string `json:"price"`
	Available *bool  `json:"available"`
}

func (h *Handler) PutProduct(c *gin.Context) {
	var req putProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()
	id := c.Param("productId")

	if req.Name == "" {
		if req.Available == nil {
			writeDomainError(c, application.NewValidation("name or available is required"))
			return
		}
		p, err := h.Catalog.SetAvailability(ctx, id, *req.Available)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, productBody(p))
		return
	}

	price, err := money.Parse(req.Price)
	if err != nil {
		writeDomainError(c, application.NewValidation("price: "+err.Error()))
		return
	}
	available := true
	if req.Available != nil {
		available = *req.Available
	}
	p, err := h.Catalog.Upsert(ctx, appinventory.UpsertInput{
		ID:        id,
		Name:      req.Name,
		Size:      req.Size,
		UnitPrice: price,
		Available: available,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, productBody(p))
}
