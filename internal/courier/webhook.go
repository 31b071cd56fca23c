package courier

import (
	"fmt"
	"strings"
)

// WebhookPayload is the loosely shaped callback body the carrier posts.
// Fields are pointers because carriers omit them inconsistently; everything
// downstream works on the extracted values only.
type WebhookPayload struct {
	ConsignmentID     *int64   `json:"consignment_id"`
	Invoice           *string  `json:"invoice"`
	TrackingCode      *string  `json:"tracking_code"`
	Status            *string  `json:"status"`
	DeliveryStatus    *string  `json:"delivery_status"`
	CurrentStatus     *string  `json:"current_status"`
	ConsignmentStatus *string  `json:"consignment_status"`
	CODAmount         *float64 `json:"cod_amount"`
}

// ExtractStatus returns the first populated status field, in the carrier's
// documented precedence order.
func (p WebhookPayload) ExtractStatus() string {
	for _, candidate := range []*string{p.DeliveryStatus, p.Status, p.CurrentStatus, p.ConsignmentStatus} {
		if candidate != nil && strings.TrimSpace(*candidate) != "" {
			return strings.TrimSpace(*candidate)
		}
	}
	return ""
}

// DedupToken identifies one webhook event for the replay guard. Empty when
// the payload carries no usable identifier.
func (p WebhookPayload) DedupToken() string {
	id := ""
	switch {
	case p.ConsignmentID != nil:
		id = fmt.Sprintf("cid-%d", *p.ConsignmentID)
	case p.TrackingCode != nil && *p.TrackingCode != "":
		id = "track-" + *p.TrackingCode
	case p.Invoice != nil && *p.Invoice != "":
		id = "invoice-" + *p.Invoice
	default:
		return ""
	}
	status := strings.ToLower(p.ExtractStatus())
	if status == "" {
		return ""
	}
	return id + ":" + status
}
