package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nexkarthq/nexkart-backend/pkg/db/models"
	"github.com/nexkarthq/nexkart-backend/pkg/enums"
)

// Repository manages persistence for ledger accounts and entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindEntryByIdempotencyKey(ctx context.Context, key string) (*models.LedgerEntry, error)
	FindAccount(ctx context.Context, customerID uuid.UUID, kind enums.AccountKind) (*models.LedgerAccount, error)
	FindAccountForUpdate(ctx context.Context, customerID uuid.UUID, kind enums.AccountKind) (*models.LedgerAccount, error)
	CreateAccount(ctx context.Context, account *models.LedgerAccount) error
	UpdateAccount(ctx context.Context, account *models.LedgerAccount) error
	CreateEntry(ctx context.Context, entry *models.LedgerEntry) error
	ListEntries(ctx context.Context, accountID uuid.UUID, limit int) ([]models.LedgerEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindEntryByIdempotencyKey(ctx context.Context, key string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindAccount(ctx context.Context, customerID uuid.UUID, kind enums.AccountKind) (*models.LedgerAccount, error) {
	var account models.LedgerAccount
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND kind = ?", customerID, kind).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// FindAccountForUpdate loads the account summary under an exclusive row lock
// so concurrent postings to the same account serialize. The locking clause is
// skipped on sqlite, which has no FOR UPDATE and serializes writers anyway.
func (r *repository) FindAccountForUpdate(ctx context.Context, customerID uuid.UUID, kind enums.AccountKind) (*models.LedgerAccount, error) {
	q := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var account models.LedgerAccount
	err := q.Where("customer_id = ? AND kind = ?", customerID, kind).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) CreateAccount(ctx context.Context, account *models.LedgerAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) UpdateAccount(ctx context.Context, account *models.LedgerAccount) error {
	return r.db.WithContext(ctx).
		Model(&models.LedgerAccount{}).
		Where("id = ?", account.ID).
		Updates(map[string]any{
			"balance":         account.Balance,
			"lifetime_earned": account.LifetimeEarned,
			"lifetime_spent":  account.LifetimeSpent,
		}).Error
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListEntries(ctx context.Context, accountID uuid.UUID, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
