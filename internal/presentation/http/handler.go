package httppresentation

import (
	"context"
	"time"

	"github.com/ThierryFotabong/feeya/internal/application/address"
	appbasket "github.com/ThierryFotabong/feeya/internal/application/basket"
	appcheckout "github.com/ThierryFotabong/feeya/internal/application/checkout"
	appinventory "github.com/ThierryFotabong/feeya/internal/application/inventory"
	apporder "github.com/ThierryFotabong/feeya/internal/application/order"
	apppayment "github.com/ThierryFotabong/feeya/internal/application/payment"
	dompay "github.com/ThierryFotabong/feeya/internal/domain/payment"
	"github.com/ThierryFotabong/feeya/internal/observability"
)

const (
	componentHTTPHandler = "http_server"
	maxWebhookBytes      = 1 << 16
	defaultTimeout       = 5 * time.Second
)

// Services are the use cases the HTTP surface exposes.
type Services struct {
	Baskets   *appbasket.Service
	Pricer    appcheckout.Quoter
	Addresses *address.Service
	Checkout  *appcheckout.Service
	Orders    *apporder.Lifecycle
	Catalog   *appinventory.Service
	Listener  *apppayment.Listener
	Verifier  dompay.Verifier
}

type Handler struct {
	Services
	currency string
	timeout  time.Duration
	now      func() time.Time
	log      observability.Logger
}

func NewHandler(svc Services, currency string, timeout time.Duration, logger observability.Logger) *Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Handler{
		Services: svc,
		currency: currency,
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.With(observability.F("component", componentHTTPHandler)),
	}
}

func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, h.timeout)
}
