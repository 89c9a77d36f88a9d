package models

import "github.com/shopspring/decimal"

// DeliveryZone is a destination area with a flat delivery surcharge.
type DeliveryZone struct {
	ID        string          `json:"id"`
	Label     string          `json:"name"`
	Surcharge decimal.Decimal `json:"price"`
}

var deliveryZones = []DeliveryZone{
	{ID: "west-bank", Label: "الضفة الغربية", Surcharge: decimal.NewFromInt(20)},
	{ID: "jerusalem", Label: "القدس", Surcharge: decimal.NewFromInt(50)},
	{ID: "interior", Label: "الداخل المحتل", Surcharge: decimal.NewFromInt(70)},
}

// DeliveryZones returns a copy of the zone table in display order.
func DeliveryZones() []DeliveryZone {
	out := make([]DeliveryZone, len(deliveryZones))
	copy(out, deliveryZones)
	return out
}

// LookupZone finds a zone by id.
func LookupZone(id string) (DeliveryZone, bool) {
	for _, z := range deliveryZones {
		if z.ID == id {
			return z, true
		}
	}
	return DeliveryZone{}, false
}
