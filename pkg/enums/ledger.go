package enums

import "fmt"

// AccountKind distinguishes the two per-customer ledgers.
type AccountKind string

const (
	AccountKindWallet AccountKind = "wallet"
	AccountKindPoints AccountKind = "points"
)

var validAccountKinds = []AccountKind{AccountKindWallet, AccountKindPoints}

func (k AccountKind) String() string {
	return string(k)
}

func (k AccountKind) IsValid() bool {
	for _, candidate := range validAccountKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// EntryDirection marks whether a posted entry raises or lowers the balance.
type EntryDirection string

const (
	EntryDirectionCredit EntryDirection = "credit"
	EntryDirectionDebit  EntryDirection = "debit"
)

func (d EntryDirection) IsValid() bool {
	return d == EntryDirectionCredit || d == EntryDirectionDebit
}

// EntrySource names the business event that caused a ledger entry.
type EntrySource string

const (
	EntrySourceReferral   EntrySource = "referral"
	EntrySourceBonus      EntrySource = "bonus"
	EntrySourceRefund     EntrySource = "refund"
	EntrySourcePurchase   EntrySource = "purchase"
	EntrySourceWithdrawal EntrySource = "withdrawal"
	EntrySourceAdjust     EntrySource = "adjust"
)

var validEntrySources = []EntrySource{
	EntrySourceReferral,
	EntrySourceBonus,
	EntrySourceRefund,
	EntrySourcePurchase,
	EntrySourceWithdrawal,
	EntrySourceAdjust,
}

func (s EntrySource) IsValid() bool {
	for _, candidate := range validEntrySources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseEntrySource converts raw input into an EntrySource.
func ParseEntrySource(value string) (EntrySource, error) {
	for _, candidate := range validEntrySources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry source %q", value)
}
