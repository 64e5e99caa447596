package httppresentation

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	appcheckout "github.com/ThierryFotabong/feeya/internal/application/checkout"
	domorder "github.com/ThierryFotabong/feeya/internal/domain/order"
)

type createIntentReq struct {
	AddressID           string `json:"addressId" binding:"required"`
	SubstitutionAllowed bool   `json:"substitutionAllowed"`
}

type createIntentResp struct {
	IntentID     string    `json:"intentId"`
	ClientSecret string    `json:"clientSecret"`
	Currency     string    `json:"currency"`
	Quote        quoteResp `json:"quote"`
}

func (h *Handler) CreateIntent(c *gin.Context) {
	var req createIntentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()

	res, err := h.Checkout.CreateIntent(ctx, appcheckout.CreateIntentInput{
		CustomerID:          customerID(c),
		AddressID:           req.AddressID,
		SubstitutionAllowed: req.SubstitutionAllowed,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, createIntentResp{
		IntentID:     res.IntentID,
		ClientSecret: res.ClientSecret,
		Currency:     res.Currency,
		Quote:        quoteBody(res.Quote, res.Currency),
	})
}

type intentStatusResp struct {
	IntentID    string `json:"intentId"`
	State       string `json:"state"`
	OrderID     string `json:"orderId,omitempty"`
	OrderNumber string `json:"orderNumber,omitempty"`
}

func (h *Handler) IntentStatus(c *gin.Context) {
	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()

	res, err := h.Checkout.IntentStatus(ctx, customerID(c), c.Param("intentId"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, intentStatusResp{
		IntentID:    res.IntentID,
		State:       res.State,
		OrderID:     res.OrderID,
		OrderNumber: res.OrderNumber,
	})
}

type orderResp struct {
	ID                  string         `json:"id"`
	Number              string         `json:"number"`
	Status              string         `json:"status"`
	PaymentStatus       string         `json:"paymentStatus"`
	PaymentIntentID     string         `json:"paymentIntentId"`
	AddressID           string         `json:"addressId"`
	Items               []itemResp     `json:"items"`
	Subtotal            int64          `json:"subtotal"`
	DeliveryFee         int64          `json:"deliveryFee"`
	Total               int64          `json:"total"`
	Currency            string         `json:"currency"`
	ETABand             string         `json:"etaBand"`
	SubstitutionAllowed bool           `json:"substitutionAllowed"`
	CreatedAt           time.Time      `json:"createdAt"`
	Timeline            []timelineResp `json:"timeline,omitempty"`
}

type itemResp struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Size      string `json:"size,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

type timelineResp struct {
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurredAt"`
}

func orderBody(o *domorder.Order, events []domorder.Event) orderResp {
	items := make([]itemResp, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemResp{
			ProductID: it.ProductID,
			Name:      it.Name,
			Size:      it.Size,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	var timeline []timelineResp
	for _, ev := range events {
		timeline = append(timeline, timelineResp{Kind: string(ev.Kind), OccurredAt: ev.OccurredAt})
	}
	return orderResp{
		ID:                  o.ID,
		Number:              o.Number,
		Status:              string(o.Status),
		PaymentStatus:       string(o.PaymentStatus),
		PaymentIntentID:     o.PaymentIntentID,
		AddressID:           o.AddressID,
		Items:               items,
		Subtotal:            o.Subtotal,
		DeliveryFee:         o.DeliveryFee,
		Total:               o.Total,
		Currency:            o.Currency,
		ETABand:             o.ETABand,
		SubstitutionAllowed: o.SubstitutionAllowed,
		CreatedAt:           o.CreatedAt,
		Timeline:            timeline,
	}
}

// ConfirmIntent materializes the order right after the client sees payment succeed.
func (h *Handler) ConfirmIntent(c *gin.Context) {
	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()

	o, err := h.Checkout.Confirm(ctx, customerID(c), c.Param("intentId"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderBody(o, nil))
}
