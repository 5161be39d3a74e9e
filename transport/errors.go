package transport

import "errors"

var (
	ErrNetworkUnavailable = errors.New("network-unavailable")
	ErrNotConnected       = errors.New("not-connected")
	ErrConnectionTimeout  = errors.New("connection-timeout")
	ErrReconnectExhausted = errors.New("reconnect-exhausted")
	ErrSendFailed         = errors.New("send-failed")
)
