package model

import "errors"

// ErrMalformed marks persisted data that could not be parsed. Loaders wrap
// it so callers can tell "nothing saved" from "saved but unreadable".
var ErrMalformed = errors.New("malformed todo document")
