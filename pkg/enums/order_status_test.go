package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusPending, OrderStatusApproved, true},
		{OrderStatusPending, OrderStatusShipped, true},
		{OrderStatusPending, OrderStatusDelivered, false},
		{OrderStatusApproved, OrderStatusHold, false},
		{OrderStatusHold, OrderStatusApproved, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusCompleted, true},
		{OrderStatusCompleted, OrderStatusDelivered, false},
		{OrderStatusCancelled, OrderStatusApproved, false},
		// same-status is always a legal no-op
		{OrderStatusCancelled, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusPending, true},
		// unknown legacy statuses are permissive
		{OrderStatus("legacy_weird"), OrderStatusDelivered, true},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Fatalf("%s -> %s: expected %v got %v", tt.from, tt.to, tt.allowed, got)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	if !OrderStatusCompleted.IsTerminal() {
		t.Fatal("completed should be terminal")
	}
	if !OrderStatusCancelled.IsTerminal() {
		t.Fatal("cancelled should be terminal")
	}
	if OrderStatusShipped.IsTerminal() {
		t.Fatal("shipped is not terminal")
	}
	if OrderStatus("legacy_weird").IsTerminal() {
		t.Fatal("unknown statuses are not terminal")
	}
}

func TestCourierStatusHelpers(t *testing.T) {
	if !CourierHandedOver(" In_Transit ") {
		t.Fatal("in_transit should count as handed over")
	}
	if CourierHandedOver("pending") {
		t.Fatal("pending is not handed over")
	}
	if !CourierStatusIndicatesDelivered("Partial Delivered") {
		t.Fatal("containment check should match")
	}
	if CourierStatusIndicatesDelivered("in_review") {
		t.Fatal("unrelated status should not match")
	}
}
