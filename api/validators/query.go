package validators

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	pkgerrors "github.com/nexkarthq/nexkart-backend/pkg/errors"
)

// ParseQueryInt reads an optional integer query parameter, falling back to
// def when absent and rejecting values outside [min, max].
func ParseQueryInt(r *http.Request, key string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("query parameter %q must be an integer", key)).
			WithDetails(map[string]string{key: "must be an integer"})
	}
	if val < min || val > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("query parameter %q out of range", key)).
			WithDetails(map[string]string{key: fmt.Sprintf("must be between %d and %d", min, max)})
	}
	return val, nil
}

// ParseUUIDParam validates a chi route parameter as a uuid.
func ParseUUIDParam(raw, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("path parameter %q must be a uuid", name)).
			WithDetails(map[string]string{name: "must be a valid uuid"})
	}
	return id, nil
}
