package book

import "errors"

// Hard failures abort the whole call and leave no state behind. Client-input
// problems (bad price, bad size, not enough funds) are not errors: they are
// recorded on the order as a Rejected status with a reason code.
var (
	ErrInvalidOrderID       = errors.New("order id must not be empty")
	ErrDuplicateOrderID     = errors.New("order id already used")
	ErrOrderNotFound        = errors.New("order not found")
	ErrNotOwner             = errors.New("caller does not own the order")
	ErrInvalidPrice         = errors.New("price is not representable")
	ErrInvalidParam         = errors.New("the param is invalid")
	ErrInsufficientBalance  = errors.New("book balance is insufficient")
	ErrInsufficientApproval = errors.New("no approved funds to pull")
	ErrTransferFailed       = errors.New("token transfer failed")
)
