package ledger

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nexkarthq/nexkart-backend/pkg/db"
	"github.com/nexkarthq/nexkart-backend/pkg/db/models"
	"github.com/nexkarthq/nexkart-backend/pkg/enums"
	"github.com/nexkarthq/nexkart-backend/pkg/errors"
	"github.com/nexkarthq/nexkart-backend/pkg/logger"
)

const entryIdempotencyConstraint = "uq_ledger_entries_idempotency_key"

// AccountRef identifies one customer ledger.
type AccountRef struct {
	CustomerID uuid.UUID
	Kind       enums.AccountKind
}

// PostingInput describes a single credit or debit to apply.
type PostingInput struct {
	Account        AccountRef
	Amount         decimal.Decimal
	Source         enums.EntrySource
	Description    string
	ReferenceID    string
	IdempotencyKey string
}

// Service posts ledger mutations and reads balances.
type Service interface {
	Credit(ctx context.Context, in PostingInput) (*models.LedgerEntry, error)
	Debit(ctx context.Context, in PostingInput) (*models.LedgerEntry, error)
	Balance(ctx context.Context, ref AccountRef) (*models.LedgerAccount, error)
	History(ctx context.Context, ref AccountRef, limit int) ([]models.LedgerEntry, error)
}

// ServiceParams wires the ledger service dependencies.
type ServiceParams struct {
	Repo   Repository
	DB     *db.Client
	Logger *logger.Logger
}

type service struct {
	repo Repository
	db   *db.Client
	logg *logger.Logger
}

// NewService builds the ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger service requires a repository")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("ledger service requires a database client")
	}
	return &service{repo: params.Repo, db: params.DB, logg: params.Logger}, nil
}

func (s *service) Credit(ctx context.Context, in PostingInput) (*models.LedgerEntry, error) {
	return s.post(ctx, enums.EntryDirectionCredit, in)
}

func (s *service) Debit(ctx context.Context, in PostingInput) (*models.LedgerEntry, error) {
	return s.post(ctx, enums.EntryDirectionDebit, in)
}

// post applies one mutation. The idempotency key is checked before taking the
// account lock; the partial unique index on ledger_entries.idempotency_key is
// the backstop for two concurrent first attempts, and the loser re-reads the
// winner's entry instead of failing.
func (s *service) post(ctx context.Context, direction enums.EntryDirection, in PostingInput) (*models.LedgerEntry, error) {
	amount, err := normalizeAmount(in.Account.Kind, in.Amount)
	if err != nil {
		return nil, err
	}
	if !in.Source.IsValid() {
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("unknown ledger source %q", in.Source))
	}

	if in.IdempotencyKey != "" {
		existing, err := s.repo.FindEntryByIdempotencyKey(ctx, in.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(errors.CodeInternal, err, "looking up ledger entry by idempotency key")
		}
	}

	var posted *models.LedgerEntry
	txErr := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		account, err := s.lockAccount(ctx, repo, in.Account)
		if err != nil {
			return err
		}

		switch direction {
		case enums.EntryDirectionCredit:
			account.Balance = account.Balance.Add(amount)
			account.LifetimeEarned = account.LifetimeEarned.Add(amount)
		case enums.EntryDirectionDebit:
			if account.Balance.LessThan(amount) {
				return errors.New(errors.CodeInsufficientFunds, "balance too low for debit").
					WithDetails(map[string]string{
						"balance":   account.Balance.StringFixed(2),
						"requested": amount.StringFixed(2),
					})
			}
			account.Balance = account.Balance.Sub(amount)
			account.LifetimeSpent = account.LifetimeSpent.Add(amount)
		default:
			return errors.New(errors.CodeValidation, fmt.Sprintf("unknown entry direction %q", direction))
		}

		if err := repo.UpdateAccount(ctx, account); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "updating ledger account balance")
		}

		entry := &models.LedgerEntry{
			AccountID:      account.ID,
			Direction:      direction,
			Amount:         amount,
			Source:         in.Source,
			Description:    optional(in.Description),
			ReferenceID:    optional(in.ReferenceID),
			IdempotencyKey: optional(in.IdempotencyKey),
			BalanceAfter:   account.Balance,
		}
		if err := repo.CreateEntry(ctx, entry); err != nil {
			return err
		}
		posted = entry
		return nil
	})
	if txErr != nil {
		if in.IdempotencyKey != "" && db.IsUniqueViolation(txErr, entryIdempotencyConstraint) {
			// Lost the race on the idempotency key. The winner's entry is the
			// outcome of this call.
			existing, err := s.repo.FindEntryByIdempotencyKey(ctx, in.IdempotencyKey)
			if err != nil {
				return nil, errors.Wrap(errors.CodeInternal, err, "re-reading ledger entry after duplicate key")
			}
			if s.logg != nil {
				s.logg.Info(ctx, fmt.Sprintf("ledger posting deduplicated by key %s", in.IdempotencyKey))
			}
			return existing, nil
		}
		if errors.As(txErr) != nil {
			return nil, txErr
		}
		return nil, errors.Wrap(errors.CodeInternal, txErr, "posting ledger entry")
	}

	return posted, nil
}

// lockAccount loads the account summary under a row lock, creating it with a
// zero balance on first use. A concurrent create is resolved by re-reading
// after the unique violation.
func (s *service) lockAccount(ctx context.Context, repo Repository, ref AccountRef) (*models.LedgerAccount, error) {
	account, err := repo.FindAccountForUpdate(ctx, ref.CustomerID, ref.Kind)
	if err == nil {
		return account, nil
	}
	if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(errors.CodeInternal, err, "locking ledger account")
	}

	fresh := &models.LedgerAccount{
		CustomerID:     ref.CustomerID,
		Kind:           ref.Kind,
		Balance:        decimal.Zero,
		LifetimeEarned: decimal.Zero,
		LifetimeSpent:  decimal.Zero,
	}
	if createErr := repo.CreateAccount(ctx, fresh); createErr != nil {
		if db.IsUniqueViolation(createErr, "uq_ledger_accounts_customer_kind") {
			account, err = repo.FindAccountForUpdate(ctx, ref.CustomerID, ref.Kind)
			if err != nil {
				return nil, errors.Wrap(errors.CodeInternal, err, "re-reading ledger account after create race")
			}
			return account, nil
		}
		return nil, errors.Wrap(errors.CodeInternal, createErr, "creating ledger account")
	}
	return fresh, nil
}

func (s *service) Balance(ctx context.Context, ref AccountRef) (*models.LedgerAccount, error) {
	if !ref.Kind.IsValid() {
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("unknown account kind %q", ref.Kind))
	}
	account, err := s.repo.FindAccount(ctx, ref.CustomerID, ref.Kind)
	if err == nil {
		return account, nil
	}
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		// No postings yet. Report a zero balance without creating the row.
		return &models.LedgerAccount{
			CustomerID:     ref.CustomerID,
			Kind:           ref.Kind,
			Balance:        decimal.Zero,
			LifetimeEarned: decimal.Zero,
			LifetimeSpent:  decimal.Zero,
		}, nil
	}
	return nil, errors.Wrap(errors.CodeInternal, err, "loading ledger account")
}

func (s *service) History(ctx context.Context, ref AccountRef, limit int) ([]models.LedgerEntry, error) {
	if !ref.Kind.IsValid() {
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("unknown account kind %q", ref.Kind))
	}
	account, err := s.repo.FindAccount(ctx, ref.CustomerID, ref.Kind)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return []models.LedgerEntry{}, nil
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading ledger account")
	}
	entries, err := s.repo.ListEntries(ctx, account.ID, limit)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing ledger entries")
	}
	return entries, nil
}

// normalizeAmount validates and canonicalizes a posting amount. Wallet values
// round to two decimal places; point values must be whole numbers. Positivity
// is judged on the normalized value, so a sub-cent wallet amount that rounds
// to zero is rejected rather than posted as a zero entry.
func normalizeAmount(kind enums.AccountKind, amount decimal.Decimal) (decimal.Decimal, error) {
	if !kind.IsValid() {
		return decimal.Zero, errors.New(errors.CodeValidation, fmt.Sprintf("unknown account kind %q", kind))
	}
	normalized := amount
	switch kind {
	case enums.AccountKindPoints:
		if !amount.IsInteger() {
			return decimal.Zero, errors.New(errors.CodeValidation, "point amounts must be whole numbers")
		}
	default:
		normalized = amount.Round(2)
	}
	if normalized.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, errors.New(errors.CodeValidation, "amount must be positive")
	}
	return normalized, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
