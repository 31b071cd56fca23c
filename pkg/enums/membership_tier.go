package enums

import "fmt"

// MembershipTier orders the customer loyalty tiers. Promotion only ever moves
// up the ranking; demotion does not exist.
type MembershipTier string

const (
	MembershipTierNone      MembershipTier = "none"
	MembershipTierSilver    MembershipTier = "silver"
	MembershipTierGold      MembershipTier = "gold"
	MembershipTierPermanent MembershipTier = "permanent"
)

var membershipTierRank = map[MembershipTier]int{
	MembershipTierNone:      0,
	MembershipTierSilver:    1,
	MembershipTierGold:      2,
	MembershipTierPermanent: 3,
}

func (t MembershipTier) String() string {
	return string(t)
}

func (t MembershipTier) IsValid() bool {
	_, ok := membershipTierRank[t]
	return ok
}

// Rank returns the ordering position; unknown tiers rank lowest.
func (t MembershipTier) Rank() int {
	return membershipTierRank[t]
}

// Above reports whether t outranks other.
func (t MembershipTier) Above(other MembershipTier) bool {
	return t.Rank() > other.Rank()
}

// DiscountPercent is the storewide discount the tier carries.
func (t MembershipTier) DiscountPercent() int {
	switch t {
	case MembershipTierSilver:
		return 5
	case MembershipTierGold:
		return 10
	case MembershipTierPermanent:
		return 15
	default:
		return 0
	}
}

// FreeDeliveries is the monthly free-delivery allotment for the tier.
func (t MembershipTier) FreeDeliveries() int {
	switch t {
	case MembershipTierSilver:
		return 1
	case MembershipTierGold:
		return 3
	case MembershipTierPermanent:
		return 5
	default:
		return 0
	}
}

// ParseMembershipTier converts raw input into a MembershipTier.
func ParseMembershipTier(value string) (MembershipTier, error) {
	tier := MembershipTier(value)
	if !tier.IsValid() {
		return "", fmt.Errorf("invalid membership tier %q", value)
	}
	return tier, nil
}
