package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupZone(t *testing.T) {
	tests := []struct {
		id        string
		found     bool
		surcharge int64
	}{
		{"west-bank", true, 20},
		{"jerusalem", true, 50},
		{"interior", true, 70},
		{"", false, 0},
		{"gaza", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			zone, ok := LookupZone(tt.id)
			assert.Equal(t, tt.found, ok)
			assert.True(t, decimal.NewFromInt(tt.surcharge).Equal(zone.Surcharge))
		})
	}
}

func TestDeliveryZones_ReturnsCopy(t *testing.T) {
	zones := DeliveryZones()
	require.Len(t, zones, 3)
	zones[0].Surcharge = decimal.NewFromInt(999)

	zone, ok := LookupZone("west-bank")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(20).Equal(zone.Surcharge))
	assert.Equal(t, "الضفة الغربية", zone.Label)
}

func TestParseOrderStatus(t *testing.T) {
	for _, s := range OrderStatuses() {
		parsed, err := ParseOrderStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := ParseOrderStatus("shipped")
	assert.Error(t, err)
	_, err = ParseOrderStatus("")
	assert.Error(t, err)
}

func TestProductPatch_Apply(t *testing.T) {
	p := Product{Name: "old", Quantity: 3, Price: decimal.NewFromInt(10)}
	name := "new"
	qty := 0

	ProductPatch{Name: &name, Quantity: &qty}.Apply(&p)

	assert.Equal(t, "new", p.Name)
	assert.Equal(t, 0, p.Quantity)
	assert.False(t, p.InStock())
	assert.True(t, decimal.NewFromInt(10).Equal(p.Price))
}
