// Package activestate resolves ActiveState organization display names and
// actor usernames into the platform's canonical identifier records via its
// GraphQL API. It is the remote half of trusted publisher form validation:
// local format checks run first, then this client confirms the submitted
// names exist on the platform and returns the stable identifiers the
// registration workflow stores.
package activestate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/package-index/package-index/internal/monitoring"
	"github.com/package-index/package-index/internal/telemetry"
)

const (
	// DefaultGraphQLURL is the fixed ActiveState GraphQL endpoint.
	DefaultGraphQLURL = "https://platform.activestate.com/graphql/v1/graphql"

	// DefaultTimeout bounds a single lookup request.
	DefaultTimeout = 5 * time.Second

	// User input is never interpolated into the query text; it travels only
	// through the GraphQL variables mapping.
	organizationQuery = "query($orgname: String) {organizations(where: {display_name: {_eq: $orgname}}) {added}}"
	actorQuery        = "query($username: String) {users(where: {username: {_eq: $username}}) {user_id}}"
)

// Record is the identifier record returned by the platform for a single
// organization or actor. It is treated as opaque; callers inspect only the
// key they need ("added" for organizations, "user_id" for actors).
type Record map[string]any

// Doer issues a single HTTP request. *http.Client satisfies it; tests inject
// deterministic fakes so no live network is needed.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Client. Zero values fall back to the platform
// defaults.
type Options struct {
	GraphQLURL string
	Timeout    time.Duration
}

// Client performs identity lookups against the ActiveState GraphQL API.
// Both collaborators are injected: the HTTP client so tests can fake the
// remote, and the monitoring reporter so unexpected remote failures reach
// operators without this package holding global state.
type Client struct {
	url      string
	timeout  time.Duration
	http     Doer
	reporter monitoring.Reporter
}

// NewClient creates a lookup client. A nil httpClient falls back to a plain
// http.Client; a nil reporter falls back to the log-only NopReporter.
func NewClient(httpClient Doer, reporter monitoring.Reporter, opts Options) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if reporter == nil {
		reporter = monitoring.NopReporter{}
	}
	url := opts.GraphQLURL
	if url == "" {
		url = DefaultGraphQLURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:      url,
		timeout:  timeout,
		http:     httpClient,
		reporter: reporter,
	}
}

// lookupSpec captures how the two lookups differ: the query text, the name of
// its single variable, and where the result list lives in the envelope.
type lookupSpec struct {
	entity    string // "organization" or "actor", used in messages and metrics
	query     string
	variable  string
	resultKey string
}

// LookupOrganization resolves an organization display name to its identifier
// record. The record's "added" key carries the platform-assigned identifier.
func (c *Client) LookupOrganization(ctx context.Context, orgName string) (Record, error) {
	return c.lookup(ctx, lookupSpec{
		entity:    "organization",
		query:     organizationQuery,
		variable:  "orgname",
		resultKey: "organizations",
	}, orgName)
}

// LookupActor resolves an actor username to its identifier record. The
// record's "user_id" key carries the platform-assigned identifier.
func (c *Client) LookupActor(ctx context.Context, username string) (Record, error) {
	return c.lookup(ctx, lookupSpec{
		entity:    "actor",
		query:     actorQuery,
		variable:  "username",
		resultKey: "users",
	}, username)
}

// graphqlEnvelope is the {"data": ..., "errors": ...} response shape. GraphQL
// reports its own errors inside a 200 response, so both halves matter.
type graphqlEnvelope struct {
	Data   map[string][]Record `json:"data"`
	Errors []json.RawMessage   `json:"errors"`
}

func (c *Client) lookup(ctx context.Context, spec lookupSpec, value string) (Record, error) {
	record, err := c.doLookup(ctx, spec, value)
	telemetry.PublisherLookupsTotal.WithLabelValues(spec.entity, lookupOutcome(err)).Inc()
	return record, err
}

func (c *Client) doLookup(ctx context.Context, spec lookupSpec, value string) (Record, error) {
	payload, err := json.Marshal(map[string]any{
		"query":     spec.query,
		"variables": map[string]string{spec.variable: value},
	})
	if err != nil {
		return nil, fmt.Errorf("activestate: marshal %s lookup request: %w", spec.entity, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("activestate: create %s lookup request: %w", spec.entity, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.reporter.Report(fmt.Sprintf("Timeout from ActiveState %s lookup API (possibly offline)", spec.entity))
			return nil, &LookupError{
				Kind:    ErrUnavailable,
				Message: "Unexpected timeout from ActiveState. Try again in a few minutes",
			}
		}
		c.reporter.Report(fmt.Sprintf("Connection error from ActiveState %s lookup API (possibly offline)", spec.entity))
		return nil, &LookupError{
			Kind:    ErrUnavailable,
			Message: "Unexpected connection error from ActiveState. Try again in a few minutes",
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.reporter.Report(fmt.Sprintf("Unexpected error from ActiveState %s lookup: failed to read response body: %v", spec.entity, err))
		return nil, &LookupError{
			Kind:       ErrUnexpected,
			StatusCode: resp.StatusCode,
			Message:    "Unexpected error from ActiveState. Try again",
		}
	}

	// 404 and 403 mean the name does not exist on the platform; that is a
	// routine user mistake, not an anomaly worth alerting on.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden {
		return nil, &LookupError{
			Kind:       ErrNotFound,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("ActiveState %s not found", spec.entity),
		}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.reporter.Report(fmt.Sprintf("Unexpected error from ActiveState %s lookup: %s", spec.entity, body))
		return nil, &LookupError{
			Kind:       ErrUnexpected,
			StatusCode: resp.StatusCode,
			Message:    "Unexpected error from ActiveState. Try again",
		}
	}

	var envelope graphqlEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.reporter.Report(fmt.Sprintf("Unexpected error from ActiveState %s lookup: %s", spec.entity, body))
		return nil, &LookupError{
			Kind:       ErrUnexpected,
			StatusCode: resp.StatusCode,
			Message:    "Unexpected error from ActiveState. Try again",
		}
	}

	if len(envelope.Errors) > 0 {
		errorList, _ := json.Marshal(envelope.Errors)
		c.reporter.Report(fmt.Sprintf("Unexpected error from ActiveState %s lookup: %s", spec.entity, errorList))
		return nil, &LookupError{
			Kind:       ErrUnexpected,
			StatusCode: resp.StatusCode,
			Message:    "Unexpected error from ActiveState. Try again",
		}
	}

	records := envelope.Data[spec.resultKey]
	if len(records) == 0 {
		return nil, &LookupError{
			Kind:       ErrNotFound,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("ActiveState %s not found", spec.entity),
		}
	}

	// The filter targets a unique field, so more than one match is a remote
	// contract violation. We take the first match rather than failing the
	// submission over a remote-side inconsistency.
	return records[0], nil
}

// isTimeout distinguishes deadline expiry from other transport failures so
// the monitoring message names the right condition.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// lookupOutcome maps a lookup result to the metrics outcome label.
func lookupOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
