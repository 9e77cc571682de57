package broadcast

import "errors"

// ErrClosed is returned by Broadcast after the broadcaster has been closed.
var ErrClosed = errors.New("broadcast: closed")
