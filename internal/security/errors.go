package security

import "errors"

var (
	ErrMissingToken    = errors.New("missing bearer token")
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired or not valid yet")
	ErrInvalidIssuer   = errors.New("invalid issuer")
	ErrInvalidAudience = errors.New("invalid audience")
	ErrInvalidSubject  = errors.New("invalid subject")
)
