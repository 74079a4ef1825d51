package types

import "errors"

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrAlreadyProcessed     = errors.New("payment already processed")
	ErrPaymentExists        = errors.New("payment label already exists")
	ErrFlowNotFound         = errors.New("no purchase in progress")
)
