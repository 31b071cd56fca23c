package courier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexkarthq/nexkart-backend/pkg/config"
	"github.com/nexkarthq/nexkart-backend/pkg/errors"
)

func TestClientRequiresCredentials(t *testing.T) {
	client := NewClient(config.CourierConfig{BaseURL: "https://example.test"})

	_, err := client.StatusByConsignmentID(context.Background(), "77")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConfig))
}

func TestClientSendsCredentialHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status_by_cid/77", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("Api-Key"))
		assert.Equal(t, "test-secret", r.Header.Get("Secret-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":200,"delivery_status":"delivered"}`))
	}))
	defer server.Close()

	client := NewClient(config.CourierConfig{
		BaseURL:   server.URL,
		APIKey:    "test-key",
		SecretKey: "test-secret",
	})

	status, err := client.StatusByConsignmentID(context.Background(), "77")
	require.NoError(t, err)
	assert.Equal(t, "delivered", status)
}

func TestClientSurfacesUpstreamFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(config.CourierConfig{
		BaseURL:   server.URL,
		APIKey:    "test-key",
		SecretKey: "test-secret",
	})

	_, err := client.StatusByTrackingCode(context.Background(), "TRK-1")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeUpstream))

	server.Close()
	_, err = client.StatusByInvoice(context.Background(), "1001")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeUpstream))
}
