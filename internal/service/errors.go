// Package service contains the application logic sitting between the HTTP
// handlers and the database
package service

import "errors"

// Typed errors returned by the token engine. Handlers translate these 1:1
// into response codes and never leak anything else to the client
var (
	ErrRateLimited        = errors.New("resend cooldown has not elapsed")
	ErrDailyLimitExceeded = errors.New("daily send limit reached for this address")
	ErrResendFailed       = errors.New("verification email could not be sent")
	ErrInvalidSignature   = errors.New("token signature invalid")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenNotFound      = errors.New("no matching verification record")
	ErrAlreadyUsed        = errors.New("token was used already")
	ErrUserNotFound       = errors.New("user no longer exists")
	ErrEmailMismatch      = errors.New("token email does not match the account")
)

// Terminal result codes surfaced to clients
const (
	CodeVerified           = "VERIFIED"
	CodeInvalidSignature   = "INVALID_SIGNATURE"
	CodeExpired            = "EXPIRED"
	CodeNotFound           = "NOT_FOUND"
	CodeAlreadyUsed        = "ALREADY_USED"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeEmailMismatch      = "EMAIL_MISMATCH"
	CodeRateLimited        = "RATE_LIMITED"
	CodeDailyLimitExceeded = "DAILY_LIMIT_EXCEEDED"
	CodeResendFailed       = "RESEND_FAILED"
)
