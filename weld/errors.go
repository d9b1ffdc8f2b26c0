package weld

import "errors"

var (
	ErrRejectedBySolver = errors.New("weld: rejected by solver")
	ErrUnknownID        = errors.New("weld: unknown constraint id")
	ErrIDInUse          = errors.New("weld: constraint id already in use")
	ErrOwnerChanged     = errors.New("weld: constraint owner changed")
	ErrMalformedRecord  = errors.New("weld: malformed constraint record")
	ErrNilConstraint    = errors.New("weld: constraint is nil")
)
