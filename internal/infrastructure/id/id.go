package id

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"

	domorder "github.com/ThierryFotabong/feeya/internal/domain/order"
)

type UUIDGenerator struct{}

func NewUUIDGenerator() UUIDGenerator { return UUIDGenerator{} }

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// numberAlphabet leaves out characters customers confuse when reading a number aloud.
const numberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const suffixLen = 6

type NumberGenerator struct{}

func NewNumberGenerator() NumberGenerator { return NumberGenerator{} }

func (NumberGenerator) NewNumber(at time.Time) string {
	var buf [suffixLen]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand does not fail on supported platforms; fall back to uuid entropy.
		u := uuid.New()
		copy(buf[:], u[:suffixLen])
	}
	out := make([]byte, suffixLen)
	for i, b := range buf {
		out[i] = numberAlphabet[int(b)%len(numberAlphabet)]
	}
	return domorder.FormatNumber(at, string(out))
}
