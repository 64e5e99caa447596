package httppresentation_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThierryFotabong/feeya/internal/application/address"
	appbasket "github.com/ThierryFotabong/feeya/internal/application/basket"
	appcheckout "github.com/ThierryFotabong/feeya/internal/application/checkout"
	appinventory "github.com/ThierryFotabong/feeya/internal/application/inventory"
	apporder "github.com/ThierryFotabong/feeya/internal/application/order"
	apppayment "github.com/ThierryFotabong/feeya/internal/application/payment"
	"github.com/ThierryFotabong/feeya/internal/domain/delivery"
	dominv "github.com/ThierryFotabong/feeya/internal/domain/inventory"
	domorder "github.com/ThierryFotabong/feeya/internal/domain/order"
	dompay "github.com/ThierryFotabong/feeya/internal/domain/payment"
	"github.com/ThierryFotabong/feeya/internal/infrastructure/memory"
	"github.com/ThierryFotabong/feeya/internal/infrastructure/sandbox"
	httppresentation "github.com/ThierryFotabong/feeya/internal/presentation/http"
)

const secret = "test-secret"

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() string { return fmt.Sprintf("id-%d", s.n.Add(1)) }

type seqNumbers struct{ n atomic.Int64 }

func (s *seqNumbers) NewNumber(at time.Time) string {
	return domorder.FormatNumber(at, fmt.Sprintf("%06d", s.n.Add(1)))
}

// jsonVerifier accepts bodies signed with the literal header "valid".
type jsonVerifier struct{}

func (jsonVerifier) Verify(payload []byte, header string) (dompay.Event, error) {
	if header != "valid" {
		return dompay.Event{}, dompay.ErrInvalidSignature
	}
	var ev dompay.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return dompay.Event{}, errors.Join(dompay.ErrMalformedEvent, err)
	}
	return ev, nil
}

type server struct {
	router   *gin.Engine
	provider *sandbox.Provider
	inv      *memory.InventoryRepository
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	store.Seed(
		dominv.Product{ID: "plantain", Name: "Plantain", UnitPrice: 950, Available: true, OnHand: 10},
		dominv.Product{ID: "palm-oil", Name: "Palm oil", UnitPrice: 1000, Available: true, OnHand: 1},
	)
	ids := &seqIDs{}
	provider := sandbox.New()
	inv := memory.NewInventoryRepository(store)
	orders := memory.NewOrderRepository(store)
	payments := memory.NewPaymentRepository(store)
	baskets := memory.NewBasketRepository(store)
	snapshots := memory.NewCheckoutRepository(store)
	addresses := memory.NewAddressRepository(store)

	pricer, err := delivery.NewPricer([]delivery.Zone{{
		Name: "brussels", PostalCodes: []string{"1000"}, Fee: 399, FreeThreshold: 4000, DefaultBand: "today",
	}}, time.UTC)
	require.NoError(t, err)

	mat := apporder.NewMaterializer(apporder.MaterializerDeps{
		Orders: orders, Provider: provider, Snapshots: snapshots, Baskets: baskets,
		Catalog: inv, Audit: payments, IDs: ids, Numbers: &seqNumbers{},
	}, nil)
	lifecycle := apporder.NewLifecycle(orders, nil, memory.NewStatusCache(), ids, nil)

	h := httppresentation.NewHandler(httppresentation.Services{
		Baskets:   appbasket.NewService(baskets, inv, inv, ids, 0, nil),
		Pricer:    pricer,
		Addresses: address.NewService(addresses, nil, ids, 0, nil),
		Checkout: appcheckout.NewService(appcheckout.Deps{
			Baskets: baskets, Catalog: inv, Addresses: addresses, Pricer: pricer, Provider: provider,
			Snapshots: snapshots, Orders: orders, Audit: payments, Materializer: mat,
		}, "EUR", nil),
		Orders:  lifecycle,
		Catalog: appinventory.NewService(inv, nil, nil),
		Listener: apppayment.NewListener(apppayment.ListenerDeps{
			Inbox: payments, Audit: payments, Orders: orders, Materializer: mat, Lifecycle: lifecycle, IDs: ids,
		}, nil),
		Verifier: jsonVerifier{},
	}, "EUR", time.Second, nil)

	return &server{
		router:   httppresentation.NewRouter(h, httppresentation.NewAuthz(httppresentation.AuthConfig{Secret: secret}), nil, nil),
		provider: provider,
		inv:      inv,
	}
}

func token(t *testing.T, sub string, perms ...string) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub, "exp": time.Now().Add(time.Hour).Unix()}
	if len(perms) > 0 {
		claims["perms"] = perms
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

type call struct {
	method, path string
	body         any
	headers      map[string]string
}

func (s *server) do(t *testing.T, c call) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(c.body))
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w.Code, out
}

func bearer(tok string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + tok}
}

func TestHealthz(t *testing.T) {
	s := newServer(t)
	code, body := s.do(t, call{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["ok"])
}

func TestGuestBasketAndQuote(t *testing.T) {
	s := newServer(t)
	guest := map[string]string{"X-Session-ID": "sess-1"}

	code, body := s.do(t, call{method: http.MethodPost, path: "/v1/basket/lines", headers: guest,
		body: map[string]any{"productId": "plantain", "quantity": 2}})
	require.Equal(t, http.StatusOK, code, body)
	assert.EqualValues(t, 1900, body["subtotal"])
	lineID := body["lines"].([]any)[0].(map[string]any)["id"].(string)

	code, body = s.do(t, call{method: http.MethodGet, path: "/v1/delivery/quote?postal_code=1000", headers: guest})
	require.Equal(t, http.StatusOK, code, body)
	assert.EqualValues(t, 399, body["deliveryFee"])
	assert.EqualValues(t, 2299, body["total"])

	code, _ = s.do(t, call{method: http.MethodGet, path: "/v1/delivery/quote?postal_code=9999", headers: guest})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, body = s.do(t, call{method: http.MethodPatch, path: "/v1/basket/lines/" + lineID, headers: guest,
		body: map[string]any{"quantity": 0}})
	require.Equal(t, http.StatusOK, code, body)
	assert.Empty(t, body["lines"])

	p, err := s.inv.Get(context.Background(), "plantain")
	require.NoError(t, err)
	assert.Equal(t, 10, p.OnHand)
}

func TestBasket_OverStockIsConflict(t *testing.T) {
	s := newServer(t)
	code, body := s.do(t, call{method: http.MethodPost, path: "/v1/basket/lines", headers: map[string]string{"X-Session-ID": "s"},
		body: map[string]any{"productId": "palm-oil", "quantity": 2}})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "insufficient_stock", body["code"])
}

func TestCheckoutRequiresCustomer(t *testing.T) {
	s := newServer(t)
	code, _ := s.do(t, call{method: http.MethodPost, path: "/v1/checkout/intents",
		headers: map[string]string{"X-Session-ID": "s"}, body: map[string]any{"addressId": "a"}})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, call{method: http.MethodGet, path: "/v1/basket", headers: bearer("not-a-jwt")})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestCheckoutToTrackedOrder(t *testing.T) {
	s := newServer(t)
	auth := bearer(token(t, "cust-1"))

	code, body := s.do(t, call{method: http.MethodPost, path: "/v1/addresses", headers: auth,
		body: map[string]any{"line1": "Rue Haute 1", "city": "Bruxelles", "postalCode": "1000"}})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, false, body["verified"])
	addressID := body["id"].(string)

	code, body = s.do(t, call{method: http.MethodPost, path: "/v1/basket/lines", headers: auth,
		body: map[string]any{"productId": "plantain", "quantity": 4}})
	require.Equal(t, http.StatusOK, code, body)

	code, body = s.do(t, call{method: http.MethodPost, path: "/v1/checkout/intents", headers: auth,
		body: map[string]any{"addressId": addressID}})
	require.Equal(t, http.StatusCreated, code, body)
	intentID := body["intentId"].(string)
	assert.NotEmpty(t, body["clientSecret"])
	assert.EqualValues(t, 4199, body["quote"].(map[string]any)["total"])

	// Webhook before the provider settles asks for redelivery.
	event := map[string]any{"ID": "evt_1", "Type": string(dompay.EventSucceeded), "IntentID": intentID}
	code, _ = s.do(t, call{method: http.MethodPost, path: "/v1/webhooks/payments", body: event,
		headers: map[string]string{"Stripe-Signature": "valid"}})
	assert.Equal(t, http.StatusConflict, code)

	require.NoError(t, s.provider.Succeed(intentID))

	code, body = s.do(t, call{method: http.MethodPost, path: "/v1/webhooks/payments", body: event,
		headers: map[string]string{"Stripe-Signature": "valid"}})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "processed", body["outcome"])

	code, body = s.do(t, call{method: http.MethodPost, path: "/v1/webhooks/payments", body: event,
		headers: map[string]string{"Stripe-Signature": "valid"}})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "duplicate", body["outcome"])

	code, body = s.do(t, call{method: http.MethodPost, path: "/v1/checkout/intents/" + intentID + "/confirm", headers: auth})
	require.Equal(t, http.StatusOK, code, body)
	orderID := body["id"].(string)
	assert.Equal(t, "CONFIRMED", body["status"])

	code, body = s.do(t, call{method: http.MethodGet, path: "/v1/checkout/intents/" + intentID, headers: auth})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, appcheckout.StateOrderCreated, body["state"])

	code, body = s.do(t, call{method: http.MethodGet, path: "/v1/orders/" + orderID, headers: auth})
	require.Equal(t, http.StatusOK, code, body)
	require.Len(t, body["timeline"], 1)

	code, _ = s.do(t, call{method: http.MethodGet, path: "/v1/orders/" + orderID, headers: bearer(token(t, "cust-2"))})
	assert.Equal(t, http.StatusNotFound, code)

	ops := bearer(token(t, "ops-1", httppresentation.PermOrdersWrite))
	code, _ = s.do(t, call{method: http.MethodPost, path: "/v1/admin/orders/" + orderID + "/status", headers: auth,
		body: map[string]any{"status": "PREPARING"}})
	assert.Equal(t, http.StatusForbidden, code)

	code, body = s.do(t, call{method: http.MethodPost, path: "/v1/admin/orders/" + orderID + "/status", headers: ops,
		body: map[string]any{"status": "PREPARING"}})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "PREPARING", body["status"])

	code, _ = s.do(t, call{method: http.MethodPost, path: "/v1/admin/orders/" + orderID + "/status", headers: ops,
		body: map[string]any{"status": "DELIVERED"}})
	assert.Equal(t, http.StatusConflict, code)

	code, body = s.do(t, call{method: http.MethodGet, path: "/v1/orders/" + orderID + "/status", headers: auth})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "PREPARING", body["status"])
}

func TestCheckout_LineProblemsListed(t *testing.T) {
	s := newServer(t)
	auth := bearer(token(t, "cust-1"))
	code, body := s.do(t, call{method: http.MethodPost, path: "/v1/addresses", headers: auth,
		body: map[string]any{"line1": "Rue Haute 1", "city": "Bruxelles", "postalCode": "1000"}})
	require.Equal(t, http.StatusCreated, code, body)
	addressID := body["id"].(string)

	code, _ = s.do(t, call{method: http.MethodPost, path: "/v1/basket/lines", headers: auth,
		body: map[string]any{"productId": "plantain", "quantity": 1}})
	require.Equal(t, http.StatusOK, code)
	_, err := s.inv.SetAvailability(context.Background(), "plantain", false)
	require.NoError(t, err)

	code, body = s.do(t, call{method: http.MethodPost, path: "/v1/checkout/intents", headers: auth,
		body: map[string]any{"addressId": addressID}})
	require.Equal(t, http.StatusConflict, code)
	problems := body["problems"].([]any)
	require.Len(t, problems, 1)
	assert.Equal(t, appcheckout.ReasonUnavailable, problems[0].(map[string]any)["reason"])
}

func TestWebhook_BadSignature(t *testing.T) {
	s := newServer(t)
	code, body := s.do(t, call{method: http.MethodPost, path: "/v1/webhooks/payments",
		body: map[string]any{"ID": "evt_x"}, headers: map[string]string{"Stripe-Signature": "forged"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_signature", body["code"])
}

func TestAdmin_ProductUpsertAndRestock(t *testing.T) {
	s := newServer(t)
	ops := bearer(token(t, "ops-1", httppresentation.PermCatalogWrite))

	code, body := s.do(t, call{method: http.MethodPut, path: "/v1/admin/products/egusi", headers: ops,
		body: map[string]any{"name": "Egusi", "size": "500g", "price": "6.49"}})
	require.Equal(t, http.StatusOK, code, body)
	assert.EqualValues(t, 649, body["unitPrice"])
	assert.Equal(t, "6.49", body["price"])

	code, body = s.do(t, call{method: http.MethodPost, path: "/v1/admin/products/egusi/restock", headers: ops,
		body: map[string]any{"quantity": 12}})
	require.Equal(t, http.StatusOK, code, body)
	assert.EqualValues(t, 12, body["onHand"])

	code, body = s.do(t, call{method: http.MethodPut, path: "/v1/admin/products/egusi", headers: ops,
		body: map[string]any{"available": false}})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, false, body["available"])

	code, _ = s.do(t, call{method: http.MethodPut, path: "/v1/admin/products/egusi", headers: ops,
		body: map[string]any{"name": "Egusi", "price": "6.499"}})
	assert.Equal(t, http.StatusBadRequest, code)
}
