package httppresentation

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	apporder "github.com/ThierryFotabong/feeya/internal/application/order"
	apppayment "github.com/ThierryFotabong/feeya/internal/application/payment"
	dompay "github.com/ThierryFotabong/feeya/internal/domain/payment"
	"github.com/ThierryFotabong/feeya/internal/observability"
	"github.com/ThierryFotabong/feeya/internal/observability/logctx"
)

const headerSignature = "Stripe-Signature"

// PaymentWebhook verifies and applies one provider event. A 409 or 5xx asks the
// provider to redeliver; 200 and 400 end its retries.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	ev, err := h.Verifier.Verify(payload, c.GetHeader(headerSignature))
	if err != nil {
		logctx.FromOr(c.Request.Context(), h.log).Warn("webhook_rejected", observability.Err(err))
		code := "invalid_signature"
		if errors.Is(err, dompay.ErrMalformedEvent) {
			code = "malformed_event"
		}
		writeError(c, http.StatusBadRequest, code, err)
		return
	}

	ctx, cancel := h.withTimeout(c.Request.Context())
	defer cancel()

	outcome, err := h.Listener.Execute(ctx, ev)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome})
	case errors.Is(err, dompay.ErrMalformedEvent):
		writeError(c, http.StatusBadRequest, "malformed_event", err)
	case errors.Is(err, apporder.ErrPaymentNotSucceeded):
		writeError(c, http.StatusConflict, "payment_not_succeeded", err)
	case errors.Is(err, apppayment.ErrEventInFlight):
		writeError(c, http.StatusConflict, "event_in_flight", err)
	default:
		writeError(c, http.StatusInternalServerError, "internal", err)
	}
}
