package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nexkarthq/nexkart-backend/pkg/db"
	"github.com/nexkarthq/nexkart-backend/pkg/db/models"
	"github.com/nexkarthq/nexkart-backend/pkg/enums"
	"github.com/nexkarthq/nexkart-backend/pkg/errors"
)

// fakeRepo keeps ledger state in memory. The gorm transaction handle is
// ignored; the sqlite connection in tests only serves as the tx runner.
type fakeRepo struct {
	accounts map[string]*models.LedgerAccount
	entries  []*models.LedgerEntry

	// entryLookupMisses forces FindEntryByIdempotencyKey to miss, simulating
	// the window where a concurrent writer has not committed yet.
	entryLookupMisses int
	// accountCreateConflicts makes CreateAccount lose a create race.
	accountCreateConflicts int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{accounts: map[string]*models.LedgerAccount{}}
}

func accountKey(customerID uuid.UUID, kind enums.AccountKind) string {
	return customerID.String() + "/" + string(kind)
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) FindEntryByIdempotencyKey(ctx context.Context, key string) (*models.LedgerEntry, error) {
	if f.entryLookupMisses > 0 {
		f.entryLookupMisses--
		return nil, gorm.ErrRecordNotFound
	}
	for _, entry := range f.entries {
		if entry.IdempotencyKey != nil && *entry.IdempotencyKey == key {
			return entry, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindAccount(ctx context.Context, customerID uuid.UUID, kind enums.AccountKind) (*models.LedgerAccount, error) {
	if account, ok := f.accounts[accountKey(customerID, kind)]; ok {
		copied := *account
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindAccountForUpdate(ctx context.Context, customerID uuid.UUID, kind enums.AccountKind) (*models.LedgerAccount, error) {
	return f.FindAccount(ctx, customerID, kind)
}

func (f *fakeRepo) CreateAccount(ctx context.Context, account *models.LedgerAccount) error {
	key := accountKey(account.CustomerID, account.Kind)
	if f.accountCreateConflicts > 0 {
		f.accountCreateConflicts--
		if _, ok := f.accounts[key]; !ok {
			f.accounts[key] = &models.LedgerAccount{
				ID:             uuid.New(),
				CustomerID:     account.CustomerID,
				Kind:           account.Kind,
				Balance:        decimal.Zero,
				LifetimeEarned: decimal.Zero,
				LifetimeSpent:  decimal.Zero,
			}
		}
		return fmt.Errorf(`duplicate key value violates unique constraint "uq_ledger_accounts_customer_kind"`)
	}
	if _, ok := f.accounts[key]; ok {
		return fmt.Errorf(`duplicate key value violates unique constraint "uq_ledger_accounts_customer_kind"`)
	}
	account.ID = uuid.New()
	copied := *account
	f.accounts[key] = &copied
	return nil
}

func (f *fakeRepo) UpdateAccount(ctx context.Context, account *models.LedgerAccount) error {
	for key, existing := range f.accounts {
		if existing.ID == account.ID {
			copied := *account
			f.accounts[key] = &copied
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepo) CreateEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.IdempotencyKey != nil {
		for _, existing := range f.entries {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *entry.IdempotencyKey {
				return fmt.Errorf(`duplicate key value violates unique constraint "uq_ledger_entries_idempotency_key"`)
			}
		}
	}
	entry.ID = uuid.New()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeRepo) ListEntries(ctx context.Context, accountID uuid.UUID, limit int) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].AccountID == accountID {
			out = append(out, *f.entries[i])
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{Repo: repo, DB: db.NewFromGorm(conn)})
	require.NoError(t, err)
	return svc
}

func TestCreditIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()
	customerID := uuid.New()

	in := PostingInput{
		Account:        AccountRef{CustomerID: customerID, Kind: enums.AccountKindWallet},
		Amount:         decimal.NewFromInt(100),
		Source:         enums.EntrySourceReferral,
		IdempotencyKey: "referral:abc:referrer:wallet",
	}

	first, err := svc.Credit(ctx, in)
	require.NoError(t, err)

	second, err := svc.Credit(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.entries, 1)

	account, err := svc.Balance(ctx, in.Account)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(100)),
		"balance %s, want 100", account.Balance)
}

func TestCreditDuplicateKeyRace(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()
	customerID := uuid.New()

	in := PostingInput{
		Account:        AccountRef{CustomerID: customerID, Kind: enums.AccountKindWallet},
		Amount:         decimal.NewFromInt(40),
		Source:         enums.EntrySourceBonus,
		IdempotencyKey: "bonus:xyz",
	}

	winner, err := svc.Credit(ctx, in)
	require.NoError(t, err)

	// The loser misses the pre-lock lookup, hits the unique index on insert
	// and must come back with the winner's entry.
	repo.entryLookupMisses = 1
	loser, err := svc.Credit(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, winner.ID, loser.ID)
	assert.Len(t, repo.entries, 1)
}

func TestDebitInsufficientFunds(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()
	ref := AccountRef{CustomerID: uuid.New(), Kind: enums.AccountKindWallet}

	_, err := svc.Credit(ctx, PostingInput{
		Account: ref,
		Amount:  decimal.NewFromInt(50),
		Source:  enums.EntrySourceRefund,
	})
	require.NoError(t, err)

	_, err = svc.Debit(ctx, PostingInput{
		Account: ref,
		Amount:  decimal.NewFromInt(100),
		Source:  enums.EntrySourceWithdrawal,
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInsufficientFunds))

	account, err := svc.Balance(ctx, ref)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(50)),
		"balance %s, want 50", account.Balance)
	assert.Len(t, repo.entries, 1, "failed debit must not leave an entry")
}

func TestBalanceAfterTracksRunningBalance(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()
	ref := AccountRef{CustomerID: uuid.New(), Kind: enums.AccountKindWallet}

	steps := []struct {
		direction enums.EntryDirection
		amount    int64
		want      string
	}{
		{enums.EntryDirectionCredit, 100, "100.00"},
		{enums.EntryDirectionCredit, 25, "125.00"},
		{enums.EntryDirectionDebit, 40, "85.00"},
		{enums.EntryDirectionCredit, 15, "100.00"},
	}

	for i, step := range steps {
		in := PostingInput{
			Account: ref,
			Amount:  decimal.NewFromInt(step.amount),
			Source:  enums.EntrySourceAdjust,
		}
		var (
			entry *models.LedgerEntry
			err   error
		)
		if step.direction == enums.EntryDirectionCredit {
			entry, err = svc.Credit(ctx, in)
		} else {
			entry, err = svc.Debit(ctx, in)
		}
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, step.want, entry.BalanceAfter.StringFixed(2), "step %d", i)
	}

	account, err := svc.Balance(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "100.00", account.Balance.StringFixed(2))
	assert.Equal(t, "140.00", account.LifetimeEarned.StringFixed(2))
	assert.Equal(t, "40.00", account.LifetimeSpent.StringFixed(2))

	history, err := svc.History(ctx, ref, 10)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "100.00", history[0].BalanceAfter.StringFixed(2))
}

func TestAccountCreateRace(t *testing.T) {
	repo := newFakeRepo()
	repo.accountCreateConflicts = 1
	svc := newTestService(t, repo)
	ctx := context.Background()
	ref := AccountRef{CustomerID: uuid.New(), Kind: enums.AccountKindPoints}

	entry, err := svc.Credit(ctx, PostingInput{
		Account: ref,
		Amount:  decimal.NewFromInt(10),
		Source:  enums.EntrySourceReferral,
	})
	require.NoError(t, err)
	assert.Equal(t, "10.00", entry.BalanceAfter.StringFixed(2))
	assert.Len(t, repo.accounts, 1)
}

func TestAmountValidation(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()
	customerID := uuid.New()

	_, err := svc.Credit(ctx, PostingInput{
		Account: AccountRef{CustomerID: customerID, Kind: enums.AccountKindWallet},
		Amount:  decimal.Zero,
		Source:  enums.EntrySourceBonus,
	})
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	_, err = svc.Debit(ctx, PostingInput{
		Account: AccountRef{CustomerID: customerID, Kind: enums.AccountKindWallet},
		Amount:  decimal.NewFromInt(-5),
		Source:  enums.EntrySourceWithdrawal,
	})
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	_, err = svc.Credit(ctx, PostingInput{
		Account: AccountRef{CustomerID: customerID, Kind: enums.AccountKindPoints},
		Amount:  decimal.NewFromFloat(1.5),
		Source:  enums.EntrySourceReferral,
	})
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	// Sub-cent wallet amounts round to zero and must not post a zero entry.
	_, err = svc.Credit(ctx, PostingInput{
		Account: AccountRef{CustomerID: customerID, Kind: enums.AccountKindWallet},
		Amount:  decimal.NewFromFloat(0.004),
		Source:  enums.EntrySourceBonus,
	})
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
	assert.Empty(t, repo.entries)

	entry, err := svc.Credit(ctx, PostingInput{
		Account: AccountRef{CustomerID: customerID, Kind: enums.AccountKindWallet},
		Amount:  decimal.NewFromFloat(10.005),
		Source:  enums.EntrySourceBonus,
	})
	require.NoError(t, err)
	assert.Equal(t, "10.01", entry.Amount.StringFixed(2))
}
