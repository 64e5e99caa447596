package memory

import "github.com/ThierryFotabong/feeya/internal/domain/inventory"

// Seed loads catalog rows, replacing any with the same id.
func (s *Store) Seed(products ...inventory.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		c := p
		s.products[p.ID] = &c
	}
}
