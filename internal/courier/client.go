package courier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nexkarthq/nexkart-backend/pkg/config"
	"github.com/nexkarthq/nexkart-backend/pkg/errors"
)

// StatusClient queries the carrier's delivery-status API.
type StatusClient interface {
	StatusByConsignmentID(ctx context.Context, consignmentID string) (string, error)
	StatusByTrackingCode(ctx context.Context, trackingCode string) (string, error)
	StatusByInvoice(ctx context.Context, invoice string) (string, error)
}

type statusResponse struct {
	Status         int    `json:"status"`
	DeliveryStatus string `json:"delivery_status"`
}

type client struct {
	cfg  config.CourierConfig
	http *http.Client
}

// NewClient builds a Steadfast-style status client.
func NewClient(cfg config.CourierConfig) StatusClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

func (c *client) StatusByConsignmentID(ctx context.Context, consignmentID string) (string, error) {
	return c.fetch(ctx, "status_by_cid", consignmentID)
}

func (c *client) StatusByTrackingCode(ctx context.Context, trackingCode string) (string, error) {
	return c.fetch(ctx, "status_by_trackingcode", trackingCode)
}

func (c *client) StatusByInvoice(ctx context.Context, invoice string) (string, error) {
	return c.fetch(ctx, "status_by_invoice", invoice)
}

// fetch performs one status lookup. Missing credentials are a hard
// configuration error: silently skipping would mask undeliverable shipments.
func (c *client) fetch(ctx context.Context, endpoint, identifier string) (string, error) {
	if !c.cfg.Configured() {
		return "", errors.New(errors.CodeConfig, "courier api key and secret key are not configured")
	}
	if identifier == "" {
		return "", errors.New(errors.CodeValidation, "courier identifier is required")
	}

	target := fmt.Sprintf("%s/%s/%s", c.cfg.BaseURL, endpoint, url.PathEscape(identifier))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", errors.Wrap(errors.CodeInternal, err, "building courier request")
	}
	req.Header.Set("Api-Key", c.cfg.APIKey)
	req.Header.Set("Secret-Key", c.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(errors.CodeUpstream, err, "courier api unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.New(errors.CodeUpstream,
			fmt.Sprintf("courier api returned %d for %s/%s", resp.StatusCode, endpoint, identifier))
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.Wrap(errors.CodeUpstream, err, "decoding courier response")
	}
	if body.DeliveryStatus == "" {
		return "", errors.New(errors.CodeUpstream, "courier response carried no delivery status")
	}
	return body.DeliveryStatus, nil
}
