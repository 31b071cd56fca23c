package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexkarthq/nexkart-backend/pkg/enums"
)

// LedgerAccount is the cached running balance for one customer ledger
// (wallet or points). Created lazily on first access; a unique constraint on
// (customer_id, kind) resolves create races by re-read. Mutated only inside
// the transaction that appends the matching entry.
type LedgerAccount struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID     uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;uniqueIndex:uq_ledger_accounts_customer_kind"`
	Kind           enums.AccountKind `gorm:"column:kind;not null;uniqueIndex:uq_ledger_accounts_customer_kind"`
	Balance        decimal.Decimal   `gorm:"column:balance;type:numeric(12,2);not null"`
	LifetimeEarned decimal.Decimal   `gorm:"column:lifetime_earned;type:numeric(12,2);not null"`
	LifetimeSpent  decimal.Decimal   `gorm:"column:lifetime_spent;type:numeric(12,2);not null"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// LedgerEntry is one immutable posted mutation. The partial unique index on
// idempotency_key is the backstop against two concurrent first-attempts with
// the same key.
type LedgerEntry struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	AccountID      uuid.UUID            `gorm:"column:account_id;type:uuid;not null;index:idx_ledger_entries_account"`
	Direction      enums.EntryDirection `gorm:"column:direction;not null"`
	Amount         decimal.Decimal      `gorm:"column:amount;type:numeric(12,2);not null"`
	Source         enums.EntrySource    `gorm:"column:source;not null"`
	Description    *string              `gorm:"column:description"`
	ReferenceID    *string              `gorm:"column:reference_id"`
	IdempotencyKey *string              `gorm:"column:idempotency_key;uniqueIndex:uq_ledger_entries_idempotency_key"`
	BalanceAfter   decimal.Decimal      `gorm:"column:balance_after;type:numeric(12,2);not null"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
}
