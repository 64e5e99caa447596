package httppresentation

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ThierryFotabong/feeya/internal/application"
	"github.com/ThierryFotabong/feeya/internal/application/address"
	appbasket "github.com/ThierryFotabong/feeya/internal/application/basket"
	dombasket "github.com/ThierryFotabong/feeya/internal/domain/basket"
	"github.com/ThierryFotabong/feeya/internal/domain/delivery"
)

type lineResp struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Size      string `json:"size,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	LineTotal int64  `json:"lineTotal"`
}

type basketResp struct {
	BasketID string     `json:"basketId,omitempty"`
	Version  int        `json:"version"`
	Lines    []lineResp `json:"lines"`
	Subtotal int64      `json:"subtotal"`
	Currency string     `json:"currency"`
}

func (h *Handler) basketBody(s dombasket.Snapshot) basketResp {
	lines := make([]lineResp, 0, len(s.Lines))
	for _, l := range s.Lines {
		lines = append(lines, lineResp{
			ID:        l.ID,
			ProductID: l.ProductID,
			Name:      l.Name,
			Size:      l.Size,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.Total(),
		})
	}
	return basketResp{BasketID: s.BasketID, Version: s.Version, Lines: lines, Subtotal: s.Subtotal, Currency: h.currency}
}

func (h *Handler) GetBasket(c *gin.Context) {
	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()

	snap, err := h.Baskets.Snapshot(ctx, basketOwner(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.basketBody(snap))
}

type addLineReq struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

func (h *Handler) AddLine(c *gin.Context) {
	var req addLineReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()

	b, err := h.Baskets.AddLine(ctx, appbasket.AddLineInput{
		Owner:     basketOwner(c),
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.basketBody(b.Snapshot()))
}

type setQuantityReq struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *Handler) SetLineQuantity(c *gin.Context) {
	var req setQuantityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()

	b, err := h.Baskets.SetLineQuantity(ctx, appbasket.SetLineQuantityInput{
		Owner:    basketOwner(c),
		LineID:   c.Param("lineId"),
		Quantity: *req.Quantity,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.basketBody(b.Snapshot()))
}

func (h *Handler) RemoveLine(c *gin.Context) {
	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()

	b, err := h.Baskets.RemoveLine(ctx, appbasket.RemoveLineInput{
		Owner:  basketOwner(c),
		LineID: c.Param("lineId"),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.basketBody(b.Snapshot()))
}

type quoteResp struct {
	Zone        string `json:"zone"`
	Subtotal    int64  `json:"subtotal"`
	DeliveryFee int64  `json:"deliveryFee"`
	Total       int64  `json:"total"`
	ETABand     string `json:"etaBand"`
	Currency    string `json:"currency"`
}

func quoteBody(q delivery.Quote, currency string) quoteResp {
	return quoteResp{
		Zone:        q.Zone,
		Subtotal:    q.Subtotal,
		DeliveryFee: q.Fee,
		Total:       q.Total,
		ETABand:     q.ETABand,
		Currency:    currency,
	}
}

// QuoteDelivery prices delivery for the caller's current basket subtotal.
func (h *Handler) QuoteDelivery(c *gin.Context) {
	postal := c.Query("postal_code")
	if postal == "" {
		writeDomainError(c, application.NewValidation("postal_code is required"))
		return
	}
	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()

	snap, err := h.Baskets.Snapshot(ctx, basketOwner(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	q, err := h.Pricer.Quote(postal, snap.Subtotal, h.now())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, quoteBody(q, h.currency))
}

type registerAddressReq struct {
	Line1      string `json:"line1" binding:"required"`
	City       string `json:"city" binding:"required"`
	PostalCode string `json:"postalCode" binding:"required"`
}

type addressResp struct {
	ID         string  `json:"id"`
	Line1      string  `json:"line1"`
	City       string  `json:"city"`
	PostalCode string  `json:"postalCode"`
	Formatted  string  `json:"formatted"`
	Lat        float64 `json:"lat,omitempty"`
	Lng        float64 `json:"lng,omitempty"`
	Verified   bool    `json:"verified"`
}

func (h *Handler) RegisterAddress(c *gin.Context) {
	var req registerAddressReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()

	a, err := h.Addresses.Register(ctx, address.RegisterInput{
		CustomerID: customerID(c),
		Line1:      req.Line1,
		City:       req.City,
		PostalCode: req.PostalCode,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, addressResp{
		ID:         a.ID,
		Line1:      a.Line1,
		City:       a.City,
		PostalCode: a.PostalCode,
		Formatted:  a.Formatted,
		Lat:        a.Lat,
		Lng:        a.Lng,
		Verified:   a.Verified,
	})
}
