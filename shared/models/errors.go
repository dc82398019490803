package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation              = errors.New("validation failed")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrWalletNotFound          = errors.New("wallet not found")
	ErrWalletInactive          = errors.New("wallet is inactive")
	ErrWalletFrozen            = errors.New("wallet is frozen")
	ErrRecipientNotFound       = errors.New("recipient not found")
	ErrRecipientWalletInactive = errors.New("recipient wallet is not available")
	ErrSelfTransfer            = errors.New("cannot transfer to yourself")
	ErrUnknownReference        = errors.New("unknown transaction reference")
	ErrAmountMismatch          = errors.New("verified amount does not match transaction amount")
	ErrGatewayUnavailable      = errors.New("payment gateway unavailable")
	ErrChargeDeclined          = errors.New("card charge declined")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrTransactionNotPending   = errors.New("transaction is not pending")
	ErrDuplicateReference      = errors.New("duplicate transaction reference")
	ErrForbidden               = errors.New("forbidden")
	ErrCardNotFound            = errors.New("card not found")
	ErrInvalidPIN              = errors.New("invalid transaction PIN")
	ErrPINLocked               = errors.New("transaction PIN is locked")
	ErrPINNotSet               = errors.New("transaction PIN not set")
	ErrIdentityExists          = errors.New("identity already exists")
	ErrIdentityNotFound        = errors.New("identity not found")
)

// ValidationError describes a rejected input field. It matches ErrValidation
// under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
