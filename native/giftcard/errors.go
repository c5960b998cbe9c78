package giftcard

import "errors"

var (
	ErrNotInitialized       = errors.New("giftcard: ledger not initialized")
	ErrAlreadyInitialized   = errors.New("giftcard: ledger already initialized")
	ErrInvalidConfig        = errors.New("giftcard: invalid config")
	ErrInvalidAmount        = errors.New("giftcard: invalid gift card amount")
	ErrInvalidUpgrade       = errors.New("giftcard: upgrade target must exceed current package")
	ErrSelfReferral         = errors.New("giftcard: self referral not allowed")
	ErrInvalidReferrer      = errors.New("giftcard: invalid referrer")
	ErrAlreadyPurchased     = errors.New("giftcard: user already holds a purchase")
	ErrUnauthorized         = errors.New("giftcard: unauthorized")
	ErrContractPaused       = errors.New("giftcard: contract paused")
	ErrUserBlacklisted      = errors.New("giftcard: user blacklisted")
	ErrNoSpilloverAvailable = errors.New("giftcard: no spillover slot available")
	ErrArithmetic           = errors.New("giftcard: arithmetic overflow")
	ErrTransferFailed       = errors.New("giftcard: transfer failed")
)
