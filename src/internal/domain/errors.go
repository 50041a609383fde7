package domain

import "errors"

var ErrRecordNotFound = errors.New("Record not found")
var ErrInsufficientBalance = errors.New("Insufficient balance")
var ErrImbalancedEntry = errors.New("journal entry debit and credit totals are not equal")
var ErrInvalidAmount = errors.New("journal line amount must be greater than zero")
var ErrNegativeBalance = errors.New("posting would drive a liability account balance below zero")
var ErrDuplicateKey = errors.New("duplicate key")
var ErrIdempotencyConflict = errors.New("intent already used with different parameters")
var ErrAnchorInactive = errors.New("anchor type is not active")
var ErrAnchorHalted = errors.New("anchor type is halted pending operator intervention")
var ErrDailyCapExceeded = errors.New("anchor daily issuance cap exceeded")
var ErrInvalidTransition = errors.New("authorization is not in a state that permits this transition")
var ErrNotExpired = errors.New("authorization expiry window has not passed")
var ErrAdapterTimeout = errors.New("fulfillment adapter call timed out")
var ErrInternalConsistency = errors.New("obligation totals violate the consistency invariant")
