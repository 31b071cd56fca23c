package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// WebhookAck is the acknowledgment body returned to courier callbacks.
// Couriers retry on non-200 responses, so business outcomes ride in the
// message instead of the status code.
type WebhookAck struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
