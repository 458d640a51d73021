// Package auth applies Partner Center bearer credentials to HTTP requests.
package auth

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// ErrNoTokenSource indicates that no token source was configured.
var ErrNoTokenSource = errors.New("no token source configured")

// Credentials wraps the caller-supplied token source. The library never
// acquires or refreshes tokens itself; it asks the source for a currently
// valid token before every request and the source renews as needed.
type Credentials struct {
	Source oauth2.TokenSource
}

// Apply obtains a token from the source, renewing it if it has expired, and
// sets the Authorization header on req.
func (c *Credentials) Apply(req *http.Request) error {
	if !c.Valid() {
		return ErrNoTokenSource
	}
	token, err := c.Source.Token()
	if err != nil {
		return fmt.Errorf("renewing access token: %w", err)
	}
	token.SetAuthHeader(req)
	return nil
}

// Valid reports whether a token source is configured.
func (c *Credentials) Valid() bool {
	return c != nil && c.Source != nil
}
