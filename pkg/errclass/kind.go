// Package errclass converts the heterogeneous failures of the auth backend
// and the network into a closed taxonomy, and applies one deterministic
// recovery policy per kind. All error branching in the agent happens here;
// internal code never inspects status codes or error shapes ad hoc.
package errclass

import "errors"

// Kind is the closed set of failure classes.
type Kind string

const (
	// KindUnknown is any failure the classifier does not recognize.
	// Policy: surface a generic error; never mutate the session.
	KindUnknown Kind = "unknown"

	// KindTokenMissing means an operation needed a token and none exists.
	KindTokenMissing Kind = "token_missing"

	// KindTokenInvalid means the backend rejected the token or session.
	KindTokenInvalid Kind = "token_invalid"

	// KindTokenExpired means the token is past its lifetime but may be
	// refreshable.
	KindTokenExpired Kind = "token_expired"

	// KindRefreshFailed means a refresh attempt failed; the session is
	// unrecoverable.
	KindRefreshFailed Kind = "refresh_failed"

	// KindNetwork is a transport-level failure or timeout.
	KindNetwork Kind = "network"

	// KindPermissionDenied means the identity is valid but not allowed.
	KindPermissionDenied Kind = "permission_denied"

	// KindRateLimited means the backend throttled the request.
	KindRateLimited Kind = "rate_limited"

	// KindServer is a backend 5xx.
	KindServer Kind = "server"

	// KindUserNotFound means the backend no longer knows the user.
	KindUserNotFound Kind = "user_not_found"

	// KindOAuthFlow is a failure inside the OAuth handshake itself.
	KindOAuthFlow Kind = "oauth_flow"
)

func (k Kind) String() string { return string(k) }

// Sentinels raised by the agent itself and mapped by Classify.
var (
	// ErrTokenMissing marks operations attempted without a session token.
	ErrTokenMissing = errors.New("no session token")

	// ErrRefreshFailed marks a failed token refresh.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrOAuthFlow marks failures in the OAuth handshake, including CSRF
	// state mismatches.
	ErrOAuthFlow = errors.New("oauth flow error")
)
