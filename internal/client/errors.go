package client

import "errors"

// ErrHostUnresolved is returned when none of the host binary resolution
// steps (env override, manifest, conventional paths) yield an executable.
var ErrHostUnresolved = errors.New("client: could not resolve a host binary")

// ErrAlreadyClosed is returned by Format after Close has been called.
var ErrAlreadyClosed = errors.New("client: client is closed")
