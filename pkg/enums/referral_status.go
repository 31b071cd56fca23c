package enums

import "fmt"

// ReferralStatus tracks a referral from code issuance to payout.
type ReferralStatus string

const (
	ReferralStatusPending    ReferralStatus = "pending"
	ReferralStatusRegistered ReferralStatus = "registered"
	ReferralStatusCompleted  ReferralStatus = "completed"
	ReferralStatusExpired    ReferralStatus = "expired"
)

var validReferralStatuses = []ReferralStatus{
	ReferralStatusPending,
	ReferralStatusRegistered,
	ReferralStatusCompleted,
	ReferralStatusExpired,
}

func (s ReferralStatus) String() string {
	return string(s)
}

func (s ReferralStatus) IsValid() bool {
	for _, candidate := range validReferralStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseReferralStatus converts raw input into a ReferralStatus.
func ParseReferralStatus(value string) (ReferralStatus, error) {
	for _, candidate := range validReferralStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid referral status %q", value)
}
