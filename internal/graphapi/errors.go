package graphapi

import (
	"encoding/json"
	"errors"
	"fmt"
)

// APIError is an error payload returned by the reporting API instead of data.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
	Subcode    int    `json:"error_subcode"`
	TraceID    string `json:"fbtrace_id"`
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("reporting API error (status %d, %s code %d): %s", e.StatusCode, e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("reporting API error (status %d): %s", e.StatusCode, e.Message)
}

// IsRateLimited reports whether the error is one of the API's throttling codes.
func (e *APIError) IsRateLimited() bool {
	switch e.Code {
	case 4, 17, 32, 613, 80000, 80004:
		return true
	}
	return false
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

// parseAPIError extracts an error payload from body. ok is false when the body carries none.
func parseAPIError(status int, body []byte) (*APIError, bool) {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return nil, false
	}
	env.Error.StatusCode = status
	return env.Error, true
}
