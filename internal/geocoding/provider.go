package geocoding

import (
	"context"
	"net/http"
	"strings"

	"github.com/ledax/geoetl/internal/models"
)

// Status classifies the outcome of a single remote lookup. Absence and
// transient failures are data, not errors: callers branch on the status and
// fall through to their next stage.
type Status int

const (
	// StatusFound means the source produced a candidate.
	StatusFound Status = iota
	// StatusNotFound means the source answered and knows nothing about the query.
	StatusNotFound
	// StatusTransientError means the lookup failed for reasons unrelated to the
	// query (network, timeout, service error) and produced no information.
	StatusTransientError
)

// Result is the outcome of one lookup against one source.
type Result struct {
	Status    Status
	Candidate models.GeoCandidate // Valid only when Status is StatusFound.
	Err       error               // Underlying cause when Status is StatusTransientError.
}

// Found wraps a candidate in a successful result.
func Found(candidate models.GeoCandidate) Result {
	return Result{Status: StatusFound, Candidate: candidate}
}

// NotFound reports a definitive miss.
func NotFound() Result {
	return Result{Status: StatusNotFound}
}

// Transient reports a lookup that failed without answering the query.
func Transient(err error) Result {
	return Result{Status: StatusTransientError, Err: err}
}

// Query is a free-text geocoding query: either a plain text string or a
// structured multi-field query. Text takes precedence when both are set.
type Query struct {
	Text       string
	Street     string
	City       string
	State      string
	Country    string
	PostalCode string
}

// Structured reports whether the query uses the multi-field form.
func (q Query) Structured() bool {
	return q.Text == ""
}

// Fields returns the non-empty structured fields, keyed the way the remote
// API names them. Used both for request building and cache keying.
func (q Query) Fields() map[string]string {
	return map[string]string{
		"street":     q.Street,
		"city":       q.City,
		"state":      q.State,
		"country":    q.Country,
		"postalcode": q.PostalCode,
	}
}

// String renders the query for logs and provenance strings.
func (q Query) String() string {
	if !q.Structured() {
		return q.Text
	}

	parts := make([]string, 0, 4)
	for _, p := range []string{q.Street, q.City, q.State, q.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	return strings.Join(parts, ", ")
}

// FreeTextProvider resolves a free-text or structured query to a candidate.
// Implementations consult the cache before any network call and write the
// result back; they never surface absence as an error.
type FreeTextProvider interface {
	Resolve(ctx context.Context, query Query) Result
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
