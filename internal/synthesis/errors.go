package synthesis

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidFormat     = errors.New("unsupported output format")
	ErrConnection        = errors.New("backend connection error")
	ErrConnectionClosed  = errors.New("backend connection closed")
	ErrTimeout           = errors.New("conversion timed out")
	ErrMissingCredential = errors.New("backend session cookie is required")
)

// CloseError carries the close code and reason of the connection that was
// shut down while a conversion was still pending.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("%s: %d %s", ErrConnectionClosed, e.Code, e.Reason)
}

func (e *CloseError) Is(target error) bool {
	return target == ErrConnectionClosed
}
