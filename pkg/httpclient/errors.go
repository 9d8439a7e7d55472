package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/032-extremist/redcart-checkout/pkg/errors"
)

// remoteErrorBody covers both error shapes the commerce API is known to send:
// the nested envelope {"error":{"code","message"}} and a flat {"message"}.
type remoteErrorBody struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseResponseError reads the body of a non-2xx response and translates it
// into an AppError. The server's message is kept verbatim so it can be shown
// to the shopper. The body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	var body remoteErrorBody
	if json.Unmarshal(bodyBytes, &body) == nil {
		if body.Error != nil && body.Error.Message != "" {
			return mapRemoteError(resp.StatusCode, body.Error.Code, body.Error.Message)
		}
		if body.Message != "" {
			return mapRemoteError(resp.StatusCode, body.Code, body.Message)
		}
	}

	return &apperrors.AppError{
		Code:    "UPSTREAM_ERROR",
		Status:  upstreamStatus(resp.StatusCode),
		Message: fmt.Sprintf("Request failed with status code %d", resp.StatusCode),
		Err: fmt.Errorf("%s returned status %d: %s: %w",
			serviceName, resp.StatusCode, strings.TrimSpace(string(bodyBytes)), apperrors.ErrUpstreamFailure),
	}
}

func mapRemoteError(status int, code, message string) error {
	switch {
	case status == http.StatusNotFound:
		return withCode(&apperrors.AppError{Code: "NOT_FOUND", Message: message, Status: status, Err: apperrors.ErrNotFound}, code)
	case status == http.StatusBadRequest:
		return withCode(apperrors.InvalidInput(message), code)
	case status == http.StatusConflict:
		return apperrors.Conflict(orDefault(code, "CONFLICT"), message)
	case status == http.StatusUnauthorized:
		return withCode(apperrors.Unauthorized(message), code)
	case status == http.StatusForbidden:
		return withCode(apperrors.Forbidden(message), code)
	case status == http.StatusUnprocessableEntity:
		return withCode(apperrors.PaymentFailed(message), code)
	case status == http.StatusServiceUnavailable:
		return withCode(apperrors.ServiceUnavailable(message), code)
	default:
		return apperrors.Upstream(upstreamStatus(status), code, message)
	}
}

// upstreamStatus maps remote 5xx codes onto 502 so the BFF never reports
// its own failure for someone else's.
func upstreamStatus(status int) int {
	if status >= 500 && status != http.StatusServiceUnavailable {
		return http.StatusBadGateway
	}
	return status
}

func withCode(e *apperrors.AppError, code string) *apperrors.AppError {
	if code != "" {
		e.Code = code
	}
	return e
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// IsClientError reports whether status is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
