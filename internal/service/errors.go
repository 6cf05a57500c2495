package service

import "errors"

// ErrBadRequest marks input the caller can fix.
var ErrBadRequest = errors.New("bad request")
