package service

import "errors"

var (
	ErrNotOwner             = errors.New("tip belongs to another creator")
	ErrNotFunded            = errors.New("tip is not funded")
	ErrExpired              = errors.New("tip has expired")
	ErrCreatorNotFound      = errors.New("creator not found")
	ErrCreatorWalletMissing = errors.New("creator has no payout wallet")
	ErrBelowPrice           = errors.New("tip is below the creator's price")
	ErrSettlementPending    = errors.New("settlement submitted, awaiting confirmation")
	ErrInvalidWallet        = errors.New("invalid wallet address")
)
