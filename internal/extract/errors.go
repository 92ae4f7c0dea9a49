package extract

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrMalformedDocument = errors.New("malformed document")
)
