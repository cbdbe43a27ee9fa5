package service

import (
	"errors"
	"fmt"
)

var (
	ErrLockAcquire        = errors.New("order lock acquire failed")
	ErrChannelUnsupported = errors.New("channel unsupported for merchant")
	ErrNoChannelHandler   = errors.New("no channel handler for trade type")
	ErrTransitionConflict = errors.New("order transition conflict")
	ErrStoreUnavailable   = errors.New("order store unavailable")
	ErrOrderNotFound      = errors.New("order not found")
	ErrMerchantNotFound   = errors.New("merchant not found")
	ErrMerchantClosed     = errors.New("merchant closed")
	ErrInvalidOrderInput  = errors.New("invalid order input")
	ErrCallbackInvalid    = errors.New("order callback invalid")
	ErrRefundNotAllowed   = errors.New("refund not allowed")
	ErrPrepayFailed       = errors.New("prepay failed")
	ErrGatewayFailed      = errors.New("payment gateway request failed")
)

func storeError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
