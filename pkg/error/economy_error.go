package error

import "net/http"

// InsufficientFundsError is returned when a wallet or bank cannot cover an
// amount.
type InsufficientFundsError string

func (err InsufficientFundsError) Error() string {
	return string(err)
}

func (err InsufficientFundsError) ErrCode() string {
	return "INSUFFICIENT_FUNDS"
}

func (err InsufficientFundsError) StatusCode() int {
	return http.StatusUnprocessableEntity
}

// CooldownError is returned when a timed reward is claimed too early.
type CooldownError string

func (err CooldownError) Error() string {
	return string(err)
}

func (err CooldownError) ErrCode() string {
	return "COOLDOWN_ACTIVE"
}

func (err CooldownError) StatusCode() int {
	return http.StatusTooManyRequests
}
