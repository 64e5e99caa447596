package address

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ThierryFotabong/feeya/internal/application"
	domaddress "github.com/ThierryFotabong/feeya/internal/domain/address"
	"github.com/ThierryFotabong/feeya/internal/domain/delivery"
	"github.com/ThierryFotabong/feeya/internal/observability"
)

const (
	addressService  = "address-service"
	useCaseRegister = "address.register"
	geocoderPeer    = "geocoder"
)

type Service struct {
	repo     domaddress.Repository
	geocoder domaddress.Geocoder
	ids      application.IDGenerator
	timeout  time.Duration
	now      func() time.Time
	in       *application.Instrument
}

// NewService wires address registration. geocoder may be nil to skip verification.
func NewService(repo domaddress.Repository, geocoder domaddress.Geocoder, ids application.IDGenerator, timeout time.Duration, tel observability.Observability) *Service {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Service{
		repo:     repo,
		geocoder: geocoder,
		ids:      ids,
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
		in:       application.NewInstrument(addressService, tel),
	}
}

type RegisterInput struct {
	CustomerID string
	Line1      string
	City       string
	PostalCode string
}

// Register stores a delivery address. The geocoder only enriches it: when it is down or
// cannot place the text, the address is kept as typed and marked unverified.
func (s *Service) Register(ctx context.Context, cmd RegisterInput) (_ *domaddress.Address, err error) {
	ctx, run := s.in.Start(ctx, useCaseRegister, "RegisterAddress")
	defer func() { run.End(err) }()

	cmd.Line1, cmd.City = strings.TrimSpace(cmd.Line1), strings.TrimSpace(cmd.City)
	postal := delivery.NormalizePostalCode(cmd.PostalCode)
	switch {
	case cmd.CustomerID == "":
		run.Fail("CUSTOMER_ID_REQUIRED")
		return nil, application.NewValidation("customer id is required")
	case cmd.Line1 == "":
		run.Fail("LINE1_REQUIRED")
		return nil, application.NewValidation("address line is required")
	case postal == "":
		run.Fail("POSTAL_CODE_REQUIRED")
		return nil, application.NewValidation("postal code is required")
	}

	typed := cmd.Line1 + ", " + strings.TrimSpace(postal+" "+cmd.City)
	a := &domaddress.Address{
		ID:         s.ids.NewID(),
		CustomerID: cmd.CustomerID,
		Line1:      cmd.Line1,
		City:       cmd.City,
		PostalCode: postal,
		Formatted:  typed,
		CreatedAt:  s.now(),
	}

	if s.geocoder != nil {
		gctx, cancel := context.WithTimeout(ctx, s.timeout)
		start := time.Now()
		res, gerr := s.geocoder.Geocode(gctx, typed)
		cancel()
		s.in.External(geocoderPeer, "geocode", start, gerr)
		switch {
		case gerr != nil:
			run.Status = "GEOCODER_UNAVAILABLE"
			run.Logger().Warn("geocode_failed", observability.Err(gerr))
		case !res.Valid:
			run.Status = "UNVERIFIED"
		default:
			a.Formatted, a.Lat, a.Lng, a.Verified = res.FormattedAddress, res.Lat, res.Lng, true
		}
	} else {
		run.Status = "UNVERIFIED"
	}

	if err := s.repo.Save(ctx, a); err != nil {
		run.Fail("REPO_SAVE_FAILED")
		return nil, err
	}
	run.With(
		observability.F("address_id", a.ID),
		observability.F("verified", a.Verified),
	)
	return a, nil
}

// Get returns an address only to the customer who owns it.
func (s *Service) Get(ctx context.Context, customerID, id string) (*domaddress.Address, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.CustomerID != customerID {
		return nil, errors.Join(domaddress.ErrNotFound, domaddress.ErrNotOwned)
	}
	return a, nil
}
