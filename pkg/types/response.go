// Package types defines the JSON envelopes every API response uses.
package types

// SuccessEnvelope wraps a successful response body under "data".
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the wire form of an application error. Details carries
// structured context when the error has any.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps an APIError under "error".
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
