package domain

import "errors"

// ErrContentUnavailable indicates the question bank could not be read or
// parsed. Callers degrade to an empty question set rather than surfacing it
// to clients.
var ErrContentUnavailable = errors.New("question content unavailable")
