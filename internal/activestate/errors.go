// errors.go defines the failure taxonomy for ActiveState identity lookups.
// Every lookup failure carries exactly one of the sentinel kinds so callers
// can distinguish "does not exist" from "remote is down" from "remote
// misbehaved" without parsing message strings.
package activestate

import "errors"

var (
	// ErrNotFound means the remote answered authoritatively that no matching
	// organization or actor exists (HTTP 404/403, or an empty result list).
	ErrNotFound = errors.New("activestate: not found")

	// ErrUnavailable means the remote could not be reached at all (connection
	// failure) or did not answer within the request timeout. Expected
	// transient condition; callers should suggest retrying later.
	ErrUnavailable = errors.New("activestate: service unavailable")

	// ErrUnexpected means the remote answered in a way it never should for a
	// well-formed lookup: an unanticipated HTTP status, a GraphQL error
	// envelope, or an undecodable body. These are reported to monitoring.
	ErrUnexpected = errors.New("activestate: unexpected remote failure")
)

// LookupError is the error type returned by Client lookups. Kind is one of
// the sentinel errors above and is reachable through errors.Is/errors.As;
// Message is safe to surface to the submitting user.
type LookupError struct {
	Kind       error
	StatusCode int
	Message    string
}

func (e *LookupError) Error() string {
	return e.Message
}

func (e *LookupError) Unwrap() error {
	return e.Kind
}
