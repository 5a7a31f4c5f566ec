package vcsparse

import (
	"errors"
	"fmt"
)

// ErrUnsupportedStatus is returned when a porcelain status code is not in
// the accepted set. Fatal to the current parse.
var ErrUnsupportedStatus = errors.New("vcsparse: unsupported status code")

// ErrParse is returned when a commit date cannot be parsed against the
// fixed timestamp format. Fatal to the current parse.
var ErrParse = errors.New("vcsparse: parse error")

func unsupportedStatusErr(code string) error {
	return fmt.Errorf("%w: %q", ErrUnsupportedStatus, code)
}
