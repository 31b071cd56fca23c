package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexkarthq/nexkart-backend/pkg/enums"
)

// Order is one customer purchase. Rows are never deleted; cancellation is a
// terminal status, not a row removal. Mutation goes through the status
// machine and the courier reconciliation service only.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber    int64             `gorm:"column:order_number;not null;uniqueIndex:idx_orders_order_number"`
	CustomerID     uuid.UUID         `gorm:"column:customer_id;type:uuid;not null"`
	Status         enums.OrderStatus `gorm:"column:status;not null;default:'pending'"`
	TotalAmount    decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	CourierCompany *string           `gorm:"column:courier_company"`
	CourierOrderID *string           `gorm:"column:courier_order_id;index:idx_orders_courier_order_id"`
	TrackingCode   *string           `gorm:"column:tracking_code;index:idx_orders_tracking_code"`
	CourierStatus  *string           `gorm:"column:courier_status"`
	ShippedAt      *time.Time        `gorm:"column:shipped_at"`
	DeliveredAt    *time.Time        `gorm:"column:delivered_at"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderTrackingEvent is one row per courier-status change, append-only.
type OrderTrackingEvent struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index:idx_tracking_events_order"`
	Source         string    `gorm:"column:source;not null"`
	PreviousStatus *string   `gorm:"column:previous_status"`
	NewStatus      string    `gorm:"column:new_status;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
