package errclass

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/yusufmo1/GUARDIAN-sub000/pkg/backend"
)

// Classify maps any error into the closed taxonomy. Recognized backend codes
// take precedence over HTTP status; transport failures map to KindNetwork.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	switch {
	case errors.Is(err, ErrTokenMissing):
		return KindTokenMissing
	case errors.Is(err, ErrRefreshFailed):
		return KindRefreshFailed
	case errors.Is(err, ErrOAuthFlow):
		return KindOAuthFlow
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return classifyAPI(apiErr)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindNetwork
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindNetwork
	}

	return KindUnknown
}

func classifyAPI(apiErr *backend.APIError) Kind {
	switch apiErr.Code {
	case "token_expired", "session_expired":
		return KindTokenExpired
	case "token_invalid", "session_invalid", "invalid_token":
		return KindTokenInvalid
	case "refresh_failed":
		return KindRefreshFailed
	case "user_not_found":
		return KindUserNotFound
	}
	if strings.HasPrefix(apiErr.Code, "oauth_") {
		return KindOAuthFlow
	}

	switch {
	case apiErr.Status == http.StatusUnauthorized:
		return KindTokenInvalid
	case apiErr.Status == http.StatusForbidden:
		return KindPermissionDenied
	case apiErr.Status == http.StatusTooManyRequests:
		return KindRateLimited
	case apiErr.Status >= 500:
		return KindServer
	}
	return KindUnknown
}

// oauthErrorText maps known provider error codes to user-facing messages.
var oauthErrorText = map[string]string{
	"access_denied":             "Sign-in was cancelled.",
	"invalid_grant":             "The sign-in link has expired. Please sign in again.",
	"oauth_state_mismatch":      "The sign-in request could not be verified. Please sign in again.",
	"oauth_exchange_failed":     "Google sign-in failed. Please try again.",
	"temporarily_unavailable":   "Sign-in is temporarily unavailable. Please try again shortly.",
	"unauthorized_client":       "This application is not authorized for Google sign-in.",
	"interaction_required":      "Additional sign-in steps are required. Please sign in again.",
	"consent_required":          "Consent is required to continue. Please sign in again.",
	"server_error":              "The sign-in provider reported an error. Please try again.",
	"invalid_request":           "The sign-in request was malformed. Please try again.",
	"unsupported_response_type": "The sign-in request was rejected. Please try again.",
}

// OAuthErrorText returns friendly text for a known provider error code, or a
// generic fallback.
func OAuthErrorText(code string) string {
	if text, ok := oauthErrorText[code]; ok {
		return text
	}
	return "Sign-in failed. Please try again."
}
