package embedding

import "errors"

var (
	ErrAPIKeyRequired    = errors.New("embedding API key not configured")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrEmptyResponse     = errors.New("embedding response contained no vectors")
)
