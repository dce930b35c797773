package errors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalid         = errors.New("invalid")
	ErrUnavailable     = errors.New("unavailable")
	ErrNoMatchingAsset = errors.New("no matching asset")
	ErrWaitTimeout     = errors.New("wait timeout")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
