package domain

import "errors"

// Erros de configuração. São fatais na inicialização.
var (
	ErrInvalidConfig    = errors.New("invalid rate limit configuration")
	ErrUnknownAlgorithm = errors.New("unknown rate limit algorithm")
	ErrUnknownStrategy  = errors.New("unknown rejection strategy")
	ErrInvalidPattern   = errors.New("invalid resource path pattern")
)
