package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/jbrache/goose/internal/types"
)

// ErrMalformedResponse marks a response that could not be turned into a result.
var ErrMalformedResponse = errors.New("discovery: malformed response")

// ClassifyError converts any error raised while calling the backend into a *types.BackendError.
// Errors that already are backend errors are returned unchanged.
func ClassifyError(err error) *types.BackendError {
	if err == nil {
		return nil
	}

	if backendErr, ok := types.AsBackendError(err); ok {
		return backendErr
	}

	backendErr := &types.BackendError{
		Kind:      types.BackendKindUnavailable,
		Message:   err.Error(),
		Timestamp: time.Now(),
		Err:       err,
	}

	var gerr *googleapi.Error
	var netErr net.Error
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		backendErr.Kind = types.BackendKindTimeout
		backendErr.Message = "request timed out"
		backendErr.Suggestion = "Retry with a narrower query or raise AGENTSPACE_REQUEST_TIMEOUT"
	case errors.Is(err, context.Canceled):
		backendErr.Kind = types.BackendKindTimeout
		backendErr.Message = "request was cancelled"
	case errors.As(err, &gerr):
		classifyGoogleAPIError(backendErr, gerr)
	case errors.As(err, &netErr) && netErr.Timeout():
		backendErr.Kind = types.BackendKindTimeout
		backendErr.Message = fmt.Sprintf("network timeout: %v", netErr)
	case errors.Is(err, ErrMalformedResponse), errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		backendErr.Kind = types.BackendKindMalformed
		backendErr.Suggestion = "The backend returned an unexpected payload; check the serving config"
	}

	return backendErr
}

func classifyGoogleAPIError(backendErr *types.BackendError, gerr *googleapi.Error) {
	backendErr.StatusCode = gerr.Code
	if gerr.Message != "" {
		backendErr.Message = gerr.Message
	}

	switch {
	case gerr.Code == http.StatusUnauthorized:
		backendErr.Kind = types.BackendKindAuthentication
		backendErr.Suggestion = "Refresh credentials with 'gcloud auth application-default login' or set GOOGLE_APPLICATION_CREDENTIALS"
	case gerr.Code == http.StatusTooManyRequests || isQuotaReason(gerr):
		backendErr.Kind = types.BackendKindQuota
		backendErr.Suggestion = "Quota or rate limit exceeded; wait before retrying"
	case gerr.Code == http.StatusForbidden:
		backendErr.Kind = types.BackendKindAuthentication
		backendErr.Suggestion = "The caller lacks Discovery Engine permissions on the project"
	case gerr.Code == http.StatusNotFound:
		backendErr.Kind = types.BackendKindNotFound
		backendErr.Suggestion = "Check AGENTSPACE_PROJECT_ID, AGENTSPACE_LOCATION and the engine or data store id"
	case gerr.Code == http.StatusGatewayTimeout || gerr.Code == http.StatusRequestTimeout:
		backendErr.Kind = types.BackendKindTimeout
	default:
		backendErr.Kind = types.BackendKindUnavailable
	}
}

func isQuotaReason(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "quotaExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return strings.Contains(gerr.Body, "RESOURCE_EXHAUSTED")
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}
