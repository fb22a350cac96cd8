package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ce-data-e/opencodex/pkg/api"
	"github.com/ce-data-e/opencodex/pkg/transport"
)

// vendorError is the error envelope shared by Chat Completions and Gemini:
// {"error":{"message":..., "code":..., "status"|"type":...}}.
type vendorError struct {
	Error struct {
		Message string          `json:"message"`
		Code    json.RawMessage `json:"code"`
		Type    string          `json:"type"`
		Status  string          `json:"status"`
		Param   string          `json:"param"`
	} `json:"error"`
}

// contextLengthCodes are vendor error codes meaning the prompt does not fit.
var contextLengthCodes = map[string]bool{
	"context_length_exceeded": true,
	"string_above_max_length": true,
}

// MapError converts an error returned by the transport executor into an
// *api.APIError. Cancellation by the caller is returned as context.Canceled.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var se *transport.StatusError
	if errors.As(err, &se) {
		return MapHTTPError(se.StatusCode, se.Body)
	}

	var te *transport.Error
	if errors.As(err, &te) {
		if errors.Is(err, context.Canceled) {
			return context.Canceled
		}
		return api.NewTransportError(err)
	}

	return err
}

// MapHTTPError converts a non-2xx status and body into an APIError, using the
// vendor's error message when the body carries one.
func MapHTTPError(status int, body []byte) *api.APIError {
	message, code, param := ExtractErrorMessage(body)

	if contextLengthCodes[code] || strings.Contains(strings.ToLower(message), "maximum context length") {
		e := api.NewContextWindowExceededError()
		e.StatusCode = status
		e.Code = code
		if message != "" {
			e.Message = message
		}
		return e
	}

	var e *api.APIError
	switch {
	case status == http.StatusTooManyRequests:
		if message == "" {
			message = "backend rate limit exceeded"
		}
		e = api.NewTooManyRequestsError(message)

	case status >= http.StatusInternalServerError:
		if message == "" {
			message = fmt.Sprintf("backend server error (HTTP %d)", status)
		}
		e = api.NewServerError(status, message)

	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if message == "" {
			message = "backend authentication failed"
		}
		e = api.NewInvalidRequestError("", message)

	default:
		if message == "" {
			message = fmt.Sprintf("unexpected backend error (HTTP %d)", status)
		}
		e = api.NewInvalidRequestError(param, message)
	}
	e.StatusCode = status
	e.Code = code
	return e
}

// ExtractErrorMessage parses a vendor error body and returns its message,
// code and param. Numeric codes are returned in decimal; when no code is
// present the vendor status or type is used instead.
func ExtractErrorMessage(body []byte) (message, code, param string) {
	if len(body) == 0 {
		return "", "", ""
	}

	var ve vendorError
	if err := json.Unmarshal(body, &ve); err != nil {
		return "", "", ""
	}

	code = strings.Trim(string(ve.Error.Code), `"`)
	if code == "null" {
		code = ""
	}
	// Gemini sends the numeric HTTP code next to a symbolic status.
	if ve.Error.Status != "" && (code == "" || isNumeric(code)) {
		code = ve.Error.Status
	}
	if code == "" {
		code = ve.Error.Type
	}
	return ve.Error.Message, code, ve.Error.Param
}

func isNumeric(s string) bool {
	return s != "" && strings.Trim(s, "0123456789") == ""
}
