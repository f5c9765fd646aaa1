package collection

import "errors"

// errors.go provides all error values for the collection package
//
// error type checking:
//   an error can be checked if it is any of these using errors.Is(err, ErrType)

// used for membership. These signal caller misuse and are raised immediately,
// never deferred into the event pipeline.
var (
	ErrDuplicateEntity = errors.New("entity already in list")
	ErrEntityNotFound  = errors.New("entity not in list")
)

// used when an intent callback prevents the default action.
// prevention is control flow, not failure. These exist so that batch results
// can carry a per-entity reason.
var (
	ErrAddPrevented    = errors.New("add prevented")
	ErrRemovePrevented = errors.New("remove prevented")
)

// used for sync responses
var (
	ErrParse = errors.New("cannot parse response")
)
