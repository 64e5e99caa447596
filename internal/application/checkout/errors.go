package checkout

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotOwned = errors.New("checkout: intent belongs to another customer")

// Reasons a basket line blocks checkout.
const (
	ReasonNotFound          = "not_found"
	ReasonUnavailable       = "unavailable"
	ReasonInsufficientStock = "insufficient_stock"
)

type LineProblem struct {
	LineID    string
	ProductID string
	Reason    string
	// Available is set for insufficient_stock.
	Available int
}

// LineProblemsError lists every line that stopped checkout, so the client can fix them in one pass.
type LineProblemsError struct {
	Problems []LineProblem
}

func (e *LineProblemsError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("%s:%s", p.ProductID, p.Reason))
	}
	return "checkout: basket lines need attention: " + strings.Join(parts, ", ")
}
