package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPricer(t *testing.T) *Pricer {
	t.Helper()
	p, err := NewPricer([]Zone{{
		Name:          "centre",
		PostalCodes:   []string{"1000", "1050 ab"},
		Fee:           399,
		FreeThreshold: 4000,
		Bands: []Band{
			{Label: "30-45 min", From: 8 * time.Hour, To: 17 * time.Hour},
			{Label: "45-60 min", From: 17 * time.Hour, To: 22 * time.Hour},
			{Label: "next morning", From: 22 * time.Hour, To: 8 * time.Hour},
		},
		DefaultBand: "60-90 min",
	}}, time.UTC)
	require.NoError(t, err)
	return p
}

func TestPricer_Quote(t *testing.T) {
	p := testPricer(t)
	noon := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		subtotal int64
		wantFee  int64
		wantTot  int64
	}{
		{name: "below threshold pays fee", subtotal: 3800, wantFee: 399, wantTot: 4199},
		{name: "above threshold is free", subtotal: 4200, wantFee: 0, wantTot: 4200},
		{name: "exactly at threshold is free", subtotal: 4000, wantFee: 0, wantTot: 4000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := p.Quote("1000", tt.subtotal, noon)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFee, q.Fee)
			assert.Equal(t, tt.wantTot, q.Total)
			assert.Equal(t, "centre", q.Zone)
			assert.Equal(t, "30-45 min", q.ETABand)
		})
	}
}

func TestPricer_ZoneNotServed(t *testing.T) {
	_, err := testPricer(t).Quote("9999", 1000, time.Now())
	assert.ErrorIs(t, err, ErrZoneNotServed)
}

func TestPricer_NormalizesPostalCode(t *testing.T) {
	_, err := testPricer(t).Quote(" 1050AB ", 1000, time.Now())
	assert.NoError(t, err)
}

func TestPricer_BandIsDeterministicAndWraps(t *testing.T) {
	p := testPricer(t)
	late := time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)
	early := time.Date(2026, 3, 3, 6, 0, 0, 0, time.UTC)

	a, _ := p.Quote("1000", 100, late)
	b, _ := p.Quote("1000", 100, late)
	c, _ := p.Quote("1000", 100, early)

	assert.Equal(t, a, b)
	assert.Equal(t, "next morning", a.ETABand)
	assert.Equal(t, "next morning", c.ETABand)
}

func TestNewPricer_RejectsOverlappingZones(t *testing.T) {
	_, err := NewPricer([]Zone{
		{Name: "a", PostalCodes: []string{"1000"}},
		{Name: "b", PostalCodes: []string{"1000"}},
	}, time.UTC)
	assert.Error(t, err)
}
