package assignment

import "errors"

var (
	ErrNotFound                   = errors.New("assignment not found")
	ErrDuplicatePendingAssignment = errors.New("appointment already has a pending assignment")
	ErrNotAuthorized              = errors.New("assignment belongs to another doctor")
	ErrAlreadyResponded           = errors.New("assignment already responded to")
	ErrValidation                 = errors.New("invalid assignment input")
)
