package client

import "errors"

var (
	// ErrServerGone - returns when the relay has closed connection.
	ErrServerGone = errors.New("client: server disconnected")

	// ErrNickname - returns for nickname which is empty after trimming.
	ErrNickname = errors.New("client: nickname is empty")

	// errInputClosed - terminal input is over, session ends normally.
	errInputClosed = errors.New("client: input closed")
)
