package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCatalogTable(t *testing.T) {
	for _, table := range CatalogTables() {
		got, err := ParseCatalogTable(string(table))
		require.NoError(t, err)
		assert.Equal(t, table, got)
		assert.True(t, got.IsValid())
	}

	_, err := ParseCatalogTable("inventory")
	require.Error(t, err)
	assert.False(t, CatalogTable("Products").IsValid())
}

func TestChangeEventMask(t *testing.T) {
	assert.True(t, MaskAll.Matches(ChangeInsert))
	assert.True(t, MaskAll.Matches(ChangeUpdate))
	assert.True(t, MaskAll.Matches(ChangeDelete))

	mask := MaskInsert | MaskDelete
	assert.True(t, mask.Matches(ChangeInsert))
	assert.False(t, mask.Matches(ChangeUpdate))
	assert.Equal(t, "INSERT|DELETE", mask.String())

	var empty ChangeEventMask
	assert.False(t, empty.Matches(ChangeInsert))
	assert.Equal(t, "none", empty.String())
	assert.False(t, MaskAll.Matches(ChangeEventType("TRUNCATE")))
}

func TestParseChangeEventType(t *testing.T) {
	got, err := ParseChangeEventType(" update ")
	require.NoError(t, err)
	assert.Equal(t, ChangeUpdate, got)

	_, err = ParseChangeEventType("upsert")
	require.Error(t, err)
}

func TestOrderStatus(t *testing.T) {
	got, err := ParseOrderStatus("Pending")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPending, got)

	_, err = ParseOrderStatus("pending")
	require.Error(t, err)
	assert.False(t, OrderStatus("Lost").IsValid())
}

func TestSubscriptionStateIsLive(t *testing.T) {
	assert.False(t, SubscriptionUnsubscribed.IsLive())
	assert.True(t, SubscriptionSubscribing.IsLive())
	assert.True(t, SubscriptionSubscribed.IsLive())
}
