package authz

import "errors"

// ErrNotFound is returned by mutations that require an existing customer
// record. Decision reads never return it: they degrade to conservative,
// well-defined decisions instead.
var ErrNotFound = errors.New("authz: no authorization record for customer")
