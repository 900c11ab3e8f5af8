package parser

import "errors"

var (
	errUnknownSide  = errors.New("unknown transaction side")
	errBadTimestamp = errors.New("malformed timestamp, expected HH:MM:SS:mmm")
)
