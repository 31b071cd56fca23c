package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nexkarthq/nexkart-backend/pkg/db/models"
	"github.com/nexkarthq/nexkart-backend/pkg/enums"
)

// Repository manages persistence for orders and their tracking history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber int64) (*models.Order, error)
	FindByCourierOrderID(ctx context.Context, courierOrderID string) (*models.Order, error)
	FindByTrackingCode(ctx context.Context, trackingCode string) (*models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	Save(ctx context.Context, order *models.Order) error
	ListForCourierSync(ctx context.Context, statuses []enums.OrderStatus, limit int) ([]models.Order, error)
	CountDeliveredByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error)
	CreateTrackingEvent(ctx context.Context, event *models.OrderTrackingEvent) error
	ListTrackingEvents(ctx context.Context, orderID uuid.UUID, limit int) ([]models.OrderTrackingEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate loads the order under an exclusive row lock so concurrent
// reconciliations of the same order serialize and the delivered edge fires
// once. The locking clause is skipped on sqlite, which has no FOR UPDATE and
// serializes writers anyway.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	q := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var order models.Order
	if err := q.Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByOrderNumber(ctx context.Context, orderNumber int64) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByCourierOrderID(ctx context.Context, courierOrderID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("courier_order_id = ?", courierOrderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByTrackingCode(ctx context.Context, trackingCode string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("tracking_code = ?", trackingCode).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) Save(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]any{
			"status":         order.Status,
			"courier_status": order.CourierStatus,
			"shipped_at":     order.ShippedAt,
			"delivered_at":   order.DeliveredAt,
		}).Error
}

// ListForCourierSync returns orders still in-flight with a carrier, i.e. the
// ones the polling sweep should reconcile.
func (r *repository) ListForCourierSync(ctx context.Context, statuses []enums.OrderStatus, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []models.Order
	err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Where("courier_company IS NOT NULL").
		Where("courier_order_id IS NOT NULL OR tracking_code IS NOT NULL OR order_number IS NOT NULL").
		Order("updated_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) CountDeliveredByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("customer_id = ?", customerID).
		Where("status IN ?", []enums.OrderStatus{enums.OrderStatusDelivered, enums.OrderStatusCompleted}).
		Count(&count).Error
	return count, err
}

func (r *repository) CreateTrackingEvent(ctx context.Context, event *models.OrderTrackingEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListTrackingEvents(ctx context.Context, orderID uuid.UUID, limit int) ([]models.OrderTrackingEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []models.OrderTrackingEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
