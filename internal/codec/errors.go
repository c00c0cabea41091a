package codec

import (
	"errors"

	"github.com/snehjoshi/encodex/internal/mask"
	"github.com/snehjoshi/encodex/internal/transform"
)

// Sentinel errors. Match with errors.Is; classify with Kind.
var (
	ErrEmptyText         = errors.New("codec: text is empty")
	ErrInvalidShift      = errors.New("codec: caesar shift must be between 1 and 25")
	ErrPasswordRequired  = errors.New("codec: message is password protected")
	ErrCustomKeyRequired = errors.New("codec: message was encoded with a custom key")
	ErrIncorrectPassword = mask.ErrIncorrectPassword
	ErrUndecodable       = errors.New("codec: no method produced readable text")
	ErrAlreadyDestructed = errors.New("codec: message has self-destructed")

	// ErrSeparatorCollision means the payload would not split back off its
	// metadata.
	ErrSeparatorCollision = errors.New("codec: payload collides with the envelope separator")
)

// ErrorKind groups errors by what the caller should do about them.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindBadRequest        ErrorKind = "bad_request"
	KindInputRequired     ErrorKind = "input_required"
	KindWrongSecret       ErrorKind = "wrong_secret"
	KindUndecodable       ErrorKind = "undecodable"
	KindAlreadyDestructed ErrorKind = "already_destructed"
	KindInternal          ErrorKind = "internal"
)

// Kind classifies err. Unrecognised errors are KindInternal.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrPasswordRequired), errors.Is(err, ErrCustomKeyRequired):
		return KindInputRequired
	case errors.Is(err, ErrIncorrectPassword):
		return KindWrongSecret
	case errors.Is(err, ErrUndecodable):
		return KindUndecodable
	case errors.Is(err, ErrAlreadyDestructed):
		return KindAlreadyDestructed
	case errors.Is(err, ErrEmptyText), errors.Is(err, ErrInvalidShift),
		errors.Is(err, ErrSeparatorCollision), errors.Is(err, transform.ErrUnknownMethod):
		return KindBadRequest
	default:
		return KindInternal
	}
}

// Input names which secret an InputRequired error is asking for.
type Input string

const (
	InputPassword  Input = "password"
	InputCustomKey Input = "customKey"
)

// Required returns the input err asks for, or "" when err is not an
// InputRequired error.
func Required(err error) Input {
	switch {
	case errors.Is(err, ErrPasswordRequired):
		return InputPassword
	case errors.Is(err, ErrCustomKeyRequired):
		return InputCustomKey
	default:
		return ""
	}
}
