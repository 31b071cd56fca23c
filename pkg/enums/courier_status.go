package enums

import "strings"

// Courier statuses are free-form strings reported by the carrier. Only the
// handful the state machine cares about are named here.
const (
	CourierStatusPicked    = "picked"
	CourierStatusInTransit = "in_transit"
	CourierStatusDelivered = "delivered"
)

// CourierHandedOver reports whether the parcel is physically with the
// carrier, which locks the order against hold/cancel.
func CourierHandedOver(courierStatus string) bool {
	switch strings.ToLower(strings.TrimSpace(courierStatus)) {
	case CourierStatusPicked, CourierStatusInTransit, CourierStatusDelivered:
		return true
	default:
		return false
	}
}

// CourierStatusIndicatesDelivered reports whether a raw carrier status
// signals delivery. Carriers phrase this inconsistently ("Delivered",
// "delivered_approval_pending", full sentences), so containment is used.
func CourierStatusIndicatesDelivered(courierStatus string) bool {
	return strings.Contains(strings.ToLower(courierStatus), CourierStatusDelivered)
}
