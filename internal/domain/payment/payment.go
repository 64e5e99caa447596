package payment

import (
	"context"
	"errors"
	"strconv"
)

var (
	ErrIntentNotFound = errors.New("payment: intent not found")
	ErrProvider       = errors.New("payment: provider failure")
)

// Status mirrors the provider's payment intent lifecycle.
type Status string

const (
	StatusRequiresPaymentMethod Status = "requires_payment_method"
	StatusRequiresConfirmation  Status = "requires_confirmation"
	StatusRequiresAction        Status = "requires_action"
	StatusProcessing            Status = "processing"
	StatusSucceeded             Status = "succeeded"
	StatusCanceled              Status = "canceled"
)

const (
	metaBasketID            = "basketId"
	metaCustomerID          = "customerId"
	metaAddressID           = "addressId"
	metaSubstitutionAllowed = "substitutionAllowed"
)

// Metadata travels with the intent so either completion path can rebuild the order.
type Metadata struct {
	BasketID            string
	CustomerID          string
	AddressID           string
	SubstitutionAllowed bool
}

func (m Metadata) Map() map[string]string {
	return map[string]string{
		metaBasketID:            m.BasketID,
		metaCustomerID:          m.CustomerID,
		metaAddressID:           m.AddressID,
		metaSubstitutionAllowed: strconv.FormatBool(m.SubstitutionAllowed),
	}
}

func MetadataFromMap(m map[string]string) Metadata {
	sub, _ := strconv.ParseBool(m[metaSubstitutionAllowed])
	return Metadata{
		BasketID:            m[metaBasketID],
		CustomerID:          m[metaCustomerID],
		AddressID:           m[metaAddressID],
		SubstitutionAllowed: sub,
	}
}

type Intent struct {
	ID           string
	Status       Status
	Amount       int64
	Currency     string
	ClientSecret string
	Metadata     Metadata
}

type CreateIntentRequest struct {
	Amount         int64
	Currency       string
	Metadata       Metadata
	IdempotencyKey string
}

// Provider is the external payment processor.
type Provider interface {
	CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
}
