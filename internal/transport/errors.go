package transport

import "errors"

// SendError classifies a delivery failure.
//
// Unreachable means the recipient can never be delivered to again
// (blocked the bot, deactivated account); the caller is expected to
// deregister the recipient. Anything else is transient: skip now,
// the next cycle retries naturally.
type SendError struct {
	Err         error
	Unreachable bool
}

func (e *SendError) Error() string {
	if e.Err == nil {
		return "send failed"
	}
	return e.Err.Error()
}

func (e *SendError) Unwrap() error { return e.Err }

// IsUnreachable reports whether err marks a permanently unreachable recipient.
func IsUnreachable(err error) bool {
	var se *SendError
	return errors.As(err, &se) && se.Unreachable
}
