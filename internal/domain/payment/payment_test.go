package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetadata_RoundTripsThroughProviderMap(t *testing.T) {
	m := Metadata{BasketID: "b1", CustomerID: "c1", AddressID: "a1", SubstitutionAllowed: true}

	raw := m.Map()

	assert.Equal(t, "true", raw["substitutionAllowed"])
	assert.Equal(t, m, MetadataFromMap(raw))
}

func TestAuditEntry_DedupeKey(t *testing.T) {
	assert.Equal(t, "provider_event:evt_1", AuditEntry{Kind: AuditProviderEvent, EventID: "evt_1", IntentID: "pi_1"}.DedupeKey())
	assert.Equal(t, "refund_required:pi_1", AuditEntry{Kind: AuditRefundRequired, IntentID: "pi_1"}.DedupeKey())
}
