package pfs

import "context"

// Transport moves the project's working clone to and from its upstream
// location.
type Transport interface {
	// Fetch brings the working clone up to date with the upstream location.
	Fetch(ctx context.Context) error

	// Push publishes the changes recorded in resp to the upstream location.
	Push(ctx context.Context, resp *Response) error

	// LatestChangeToken returns a token that changes whenever the
	// working clone changes.
	LatestChangeToken() (string, error)
}
