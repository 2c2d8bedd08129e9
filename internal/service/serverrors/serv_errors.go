package serverrors

import "errors"

var (
	ErrUnauthorized = errors.New("caller identity missing or invalid")
	ErrNotFound     = errors.New("record not found")
	ErrGateway      = errors.New("payment gateway call failed")
	ErrBadSignature = errors.New("event signature verification failed")
	ErrFreeCourse   = errors.New("course amount is zero, nothing to charge")
)
