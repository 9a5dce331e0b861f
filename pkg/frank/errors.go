package frank

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks network, server or decoding failures that should be
	// retried on the next scheduled refresh.
	ErrTransient = errors.New("transient fetch error")

	// ErrAuthExpired marks a rejected session token. The caller should renew
	// the token and retry later.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrReauthRequired marks errors that cannot be fixed by renewing the
	// token, such as an invalid account or site. The user has to log in again.
	ErrReauthRequired = errors.New("reauthentication required")
)

// userErrorPrefix marks GraphQL errors caused by the account rather than the
// service.
const userErrorPrefix = "user-error:"

var authExpiredMessages = map[string]bool{
	"user-error:auth-not-authorised": true,
	"user-error:auth-required":       true,
	"Unauthorized":                   true,
}

// RequestError is an error returned in the errors list of a GraphQL response.
type RequestError struct {
	Operation string
	Message   string
	Path      []string
}

func (e *RequestError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s: %s (path=%s)", e.Operation, e.Message, strings.Join(e.Path, "."))
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

// IsUserError returns true if the API flagged the error as caused by the
// account.
func (e *RequestError) IsUserError() bool {
	return strings.HasPrefix(e.Message, userErrorPrefix)
}

// classify wraps a GraphQL error with the sentinel describing how the caller
// should react to it.
func classify(reqErr *RequestError, hasToken bool) error {
	if authExpiredMessages[reqErr.Message] {
		if hasToken {
			return fmt.Errorf("%w: %w", ErrAuthExpired, reqErr)
		}
		return fmt.Errorf("%w: %w", ErrReauthRequired, reqErr)
	}
	if reqErr.IsUserError() {
		return fmt.Errorf("%w: %w", ErrReauthRequired, reqErr)
	}
	return fmt.Errorf("%w: %w", ErrTransient, reqErr)
}
