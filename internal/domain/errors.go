package domain

import "errors"

var (
	ErrInvalidStatus           = errors.New("invalid order status")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrMalformedPayload        = errors.New("malformed payload")
	ErrDuplicateEvent          = errors.New("duplicate event")
	ErrOrderNotFound           = errors.New("order not found")
	ErrCommandInFlight         = errors.New("status change already in flight")
	ErrTransitionRejected      = errors.New("status change rejected by ledger")
)
