package enums

import "fmt"

// RewardType discriminates what a referral campaign pays out. Campaign rows
// arrive with loosely typed columns; parsing at the boundary keeps the reward
// engine on this union.
type RewardType string

const (
	RewardTypeWallet      RewardType = "wallet"
	RewardTypePoints      RewardType = "points"
	RewardTypeCoupon      RewardType = "coupon"
	RewardTypeFreeProduct RewardType = "free_product"
)

var validRewardTypes = []RewardType{
	RewardTypeWallet,
	RewardTypePoints,
	RewardTypeCoupon,
	RewardTypeFreeProduct,
}

func (t RewardType) String() string {
	return string(t)
}

func (t RewardType) IsValid() bool {
	for _, candidate := range validRewardTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseRewardType converts raw input into a RewardType.
func ParseRewardType(value string) (RewardType, error) {
	for _, candidate := range validRewardTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reward type %q", value)
}
