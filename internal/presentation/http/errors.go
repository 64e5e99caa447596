package httppresentation

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ThierryFotabong/feeya/internal/application"
	appcheckout "github.com/ThierryFotabong/feeya/internal/application/checkout"
	apporder "github.com/ThierryFotabong/feeya/internal/application/order"
	domaddress "github.com/ThierryFotabong/feeya/internal/domain/address"
	dombasket "github.com/ThierryFotabong/feeya/internal/domain/basket"
	domcheckout "github.com/ThierryFotabong/feeya/internal/domain/checkout"
	"github.com/ThierryFotabong/feeya/internal/domain/delivery"
	dominv "github.com/ThierryFotabong/feeya/internal/domain/inventory"
	domorder "github.com/ThierryFotabong/feeya/internal/domain/order"
	dompay "github.com/ThierryFotabong/feeya/internal/domain/payment"
)

type errorBody struct {
	Error    string            `json:"error"`
	Code     string            `json:"code"`
	Problems []lineProblemBody `json:"problems,omitempty"`
	Details  map[string]any    `json:"details,omitempty"`
}

type lineProblemBody struct {
	LineID    string `json:"lineId"`
	ProductID string `json:"productId"`
	Reason    string `json:"reason"`
	Available *int   `json:"available,omitempty"`
}

func writeError(c *gin.Context, status int, code string, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorBody{Error: err.Error(), Code: code})
}

// writeDomainError maps application and domain errors onto status codes.
func writeDomainError(c *gin.Context, err error) {
	var problems *appcheckout.LineProblemsError
	if errors.As(err, &problems) {
		body := errorBody{Error: err.Error(), Code: "basket_lines_invalid"}
		for _, p := range problems.Problems {
			lp := lineProblemBody{LineID: p.LineID, ProductID: p.ProductID, Reason: p.Reason}
			if p.Reason == appcheckout.ReasonInsufficientStock {
				n := p.Available
				lp.Available = &n
			}
			body.Problems = append(body.Problems, lp)
		}
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusConflict, body)
		return
	}

	if errors.Is(err, apporder.ErrRefundRequired) {
		writeError(c, http.StatusConflict, "refund_pending", err)
		return
	}

	var short *dominv.InsufficientStockError
	if errors.As(err, &short) {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusConflict, errorBody{
			Error:   err.Error(),
			Code:    "insufficient_stock",
			Details: map[string]any{"productId": short.ProductID, "available": short.Available},
		})
		return
	}

	switch {
	case errors.Is(err, application.ErrValidation),
		errors.Is(err, dombasket.ErrInvalidQuantity),
		errors.Is(err, dombasket.ErrInvalidOwner),
		errors.Is(err, dominv.ErrInvalidQuantity),
		errors.Is(err, delivery.ErrInvalidSubtotal):
		writeError(c, http.StatusBadRequest, "invalid_request", err)
	case errors.Is(err, appcheckout.ErrNotOwned),
		errors.Is(err, domaddress.ErrNotOwned):
		writeError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, dombasket.ErrNotFound),
		errors.Is(err, dombasket.ErrLineNotFound),
		errors.Is(err, domaddress.ErrNotFound),
		errors.Is(err, domcheckout.ErrNotFound),
		errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, dominv.ErrNotFound),
		errors.Is(err, dompay.ErrIntentNotFound):
		writeError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, dombasket.ErrEmpty):
		writeError(c, http.StatusUnprocessableEntity, "basket_empty", err)
	case errors.Is(err, delivery.ErrZoneNotServed):
		writeError(c, http.StatusUnprocessableEntity, "zone_not_served", err)
	case errors.Is(err, dominv.ErrUnavailable):
		writeError(c, http.StatusConflict, "product_unavailable", err)
	case errors.Is(err, dombasket.ErrConflict),
		errors.Is(err, domorder.ErrConflict):
		writeError(c, http.StatusConflict, "conflict", err)
	case errors.Is(err, domorder.ErrInvalidStateTransition):
		writeError(c, http.StatusConflict, "invalid_transition", err)
	case errors.Is(err, apporder.ErrPaymentNotSucceeded):
		writeError(c, http.StatusConflict, "payment_not_succeeded", err)
	case errors.Is(err, dompay.ErrProvider):
		writeError(c, http.StatusBadGateway, "provider_error", err)
	default:
		writeError(c, http.StatusInternalServerError, "internal", err)
	}
}
