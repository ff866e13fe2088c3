package repository

import "errors"

var (
	ErrTipNotFound       = errors.New("tip not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrAnswerNotFound    = errors.New("answer not found")
	ErrStatusConflict    = errors.New("tip status changed concurrently")
	ErrInvalidTransition = errors.New("invalid tip status transition")
	ErrTransferBusy      = errors.New("transfer is being submitted by another worker")
)
