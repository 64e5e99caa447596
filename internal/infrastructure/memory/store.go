package memory

import (
	"sync"

	"github.com/ThierryFotabong/feeya/internal/domain/address"
	"github.com/ThierryFotabong/feeya/internal/domain/basket"
	"github.com/ThierryFotabong/feeya/internal/domain/checkout"
	"github.com/ThierryFotabong/feeya/internal/domain/inventory"
	"github.com/ThierryFotabong/feeya/internal/domain/order"
	"github.com/ThierryFotabong/feeya/internal/domain/payment"
)

// Store keeps every aggregate behind one mutex so multi-aggregate writes commit
// atomically, the way a database transaction would.
type Store struct {
	mu sync.Mutex

	products      map[string]*inventory.Product
	baskets       map[string]*basket.Basket
	basketByOwner map[string]string
	snapshots     map[string]*checkout.Snapshot
	orders        map[string]*order.Order
	orderByIntent map[string]string
	orderNumbers  map[string]string
	events        map[string][]order.Event
	addresses     map[string]*address.Address
	audit         []payment.AuditEntry
	auditKeys     map[string]struct{}
	inbox         map[string]payment.EventType
}

func NewStore() *Store {
	return &Store{
		products:      make(map[string]*inventory.Product),
		baskets:       make(map[string]*basket.Basket),
		basketByOwner: make(map[string]string),
		snapshots:     make(map[string]*checkout.Snapshot),
		orders:        make(map[string]*order.Order),
		orderByIntent: make(map[string]string),
		orderNumbers:  make(map[string]string),
		events:        make(map[string][]order.Event),
		addresses:     make(map[string]*address.Address),
		auditKeys:     make(map[string]struct{}),
		inbox:         make(map[string]payment.EventType),
	}
}

// stage copies the products touched by adjustments so a failed step leaves the
// live rows untouched.
func (s *Store) stage(adjs ...[]inventory.Adjustment) (map[string]*inventory.Product, error) {
	staged := make(map[string]*inventory.Product)
	for _, list := range adjs {
		for _, a := range list {
			if _, ok := staged[a.ProductID]; ok {
				continue
			}
			p, ok := s.products[a.ProductID]
			if !ok {
				return nil, inventory.ErrNotFound
			}
			c := *p
			staged[a.ProductID] = &c
		}
	}
	return staged, nil
}

func (s *Store) commit(staged map[string]*inventory.Product) {
	for id, p := range staged {
		s.products[id] = p
	}
}
