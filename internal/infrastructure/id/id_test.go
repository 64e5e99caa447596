package id

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNumberGenerator_Format(t *testing.T) {
	at := time.Date(2026, 3, 7, 22, 0, 0, 0, time.UTC)
	n := NewNumberGenerator().NewNumber(at)

	assert.Regexp(t, regexp.MustCompile(`^FY-260307-[A-HJ-NP-Z2-9]{6}$`), n)
}

func TestUUIDGenerator_Unique(t *testing.T) {
	g := NewUUIDGenerator()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := g.NewID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}
