package courier

import (
	"net/http"

	"github.com/nexkarthq/nexkart-backend/api/responses"
	internalcourier "github.com/nexkarthq/nexkart-backend/internal/courier"
	"github.com/nexkarthq/nexkart-backend/pkg/logger"
)

// SyncAll runs the courier reconciliation sweep on demand. Per-order
// failures are reported in the sweep counts rather than failing the call.
func SyncAll(svc internalcourier.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := svc.SyncAll(r.Context())
		if err != nil && report == nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err != nil {
			logg.Error(r.Context(), "courier sweep finished with failures", err)
		}
		responses.WriteSuccess(w, report)
	}
}
