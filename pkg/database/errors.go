package database

import "errors"

// ErrNotReady is reported when the server does not answer within the
// configured connect timeout.
var ErrNotReady = errors.New("database not ready")
