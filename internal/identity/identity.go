// Package identity maps dashboard credentials to verified tenant ids. The
// identity provider itself is external; this package only consumes the
// credentials it mints.
package identity

import (
	"context"
	"errors"
)

// ErrInvalidCredential is returned for any credential that fails to
// verify: bad signature, malformed structure, expiry, or a missing
// subject. One error covers all of them so responses cannot leak which
// check failed.
var ErrInvalidCredential = errors.New("invalid credential")

// Verifier maps a dashboard credential to the tenant id it belongs to.
type Verifier interface {
	Verify(ctx context.Context, credential string) (tenantID string, err error)
}
