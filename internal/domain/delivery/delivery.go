package delivery

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrZoneNotServed   = errors.New("delivery: postal code not served")
	ErrInvalidSubtotal = errors.New("delivery: subtotal must not be negative")
)

// Band maps a time-of-day window [From, To) to an ETA label. Offsets are measured
// from local midnight; a window with From > To wraps past midnight.
type Band struct {
	Label string
	From  time.Duration
	To    time.Duration
}

func (b Band) contains(offset time.Duration) bool {
	if b.From <= b.To {
		return offset >= b.From && offset < b.To
	}
	return offset >= b.From || offset < b.To
}

type Zone struct {
	Name          string
	PostalCodes   []string
	Fee           int64
	FreeThreshold int64
	Bands         []Band
	DefaultBand   string
}

type Quote struct {
	Zone     string
	Subtotal int64
	Fee      int64
	Total    int64
	ETABand  string
}

// Pricer resolves postal codes to zones. It holds no mutable state after construction.
type Pricer struct {
	zones []Zone
	index map[string]int
	loc   *time.Location
}

func NewPricer(zones []Zone, loc *time.Location) (*Pricer, error) {
	if loc == nil {
		loc = time.UTC
	}
	p := &Pricer{zones: zones, index: make(map[string]int), loc: loc}
	for i, z := range zones {
		if z.Fee < 0 || z.FreeThreshold < 0 {
			return nil, fmt.Errorf("delivery: zone %q has a negative amount", z.Name)
		}
		for _, pc := range z.PostalCodes {
			key := NormalizePostalCode(pc)
			if key == "" {
				continue
			}
			if j, dup := p.index[key]; dup {
				return nil, fmt.Errorf("delivery: postal code %s in zones %q and %q", key, zones[j].Name, z.Name)
			}
			p.index[key] = i
		}
	}
	return p, nil
}

func NormalizePostalCode(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// Quote prices delivery for subtotal at the given instant. The same inputs always
// produce the same quote.
func (p *Pricer) Quote(postalCode string, subtotal int64, at time.Time) (Quote, error) {
	if subtotal < 0 {
		return Quote{}, ErrInvalidSubtotal
	}
	i, ok := p.index[NormalizePostalCode(postalCode)]
	if !ok {
		return Quote{}, ErrZoneNotServed
	}
	z := p.zones[i]

	fee := z.Fee
	if subtotal >= z.FreeThreshold {
		fee = 0
	}
	return Quote{
		Zone:     z.Name,
		Subtotal: subtotal,
		Fee:      fee,
		Total:    subtotal + fee,
		ETABand:  p.band(z, at),
	}, nil
}

func (p *Pricer) band(z Zone, at time.Time) string {
	local := at.In(p.loc)
	offset := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second
	for _, b := range z.Bands {
		if b.contains(offset) {
			return b.Label
		}
	}
	return z.DefaultBand
}
