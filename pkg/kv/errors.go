package kv

import "errors"

// ErrNotFound reports a missing key. Callers treat it as an expected
// outcome: an unknown idempotency key means no settlement was recorded,
// an unknown refresh token means the login is stale.
var ErrNotFound = errors.New("kv: key not found")
