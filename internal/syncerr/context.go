package syncerr

import (
	"context"
	"errors"
)

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// IsContext reports whether err stems from cancellation or a deadline.
func IsContext(err error) bool {
	return isContextErr(err)
}
