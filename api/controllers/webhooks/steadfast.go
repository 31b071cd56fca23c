package webhooks

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/nexkarthq/nexkart-backend/api/responses"
	internalcourier "github.com/nexkarthq/nexkart-backend/internal/courier"
	"github.com/nexkarthq/nexkart-backend/pkg/logger"
)

// Steadfast receives delivery status callbacks from the carrier. The carrier
// retries on any non-200, so every outcome past authentication is
// acknowledged with 200: unknown fields, missing orders, and internal
// failures alike. Failures surface in the ack body and the logs instead.
func Steadfast(svc internalcourier.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer io.Copy(io.Discard, r.Body)

		var payload internalcourier.WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			logg.Warn(r.Context(), "unparseable courier webhook body")
			responses.WriteWebhookAck(w, false, "invalid payload")
			return
		}

		result, err := svc.HandleWebhook(r.Context(), payload)
		if err != nil {
			logg.Error(r.Context(), "courier webhook processing failed", err)
			responses.WriteWebhookAck(w, false, "processing failed")
			return
		}
		responses.WriteWebhookAck(w, result.Success, result.Message)
	}
}
