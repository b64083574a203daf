package backend

import (
	"fmt"

	"github.com/pkg/errors"
)

// NetworkFailure covers every way a turn can fail on the wire: the request could not
// be sent, the backend answered with a non-2xx status, or the body was not the
// expected JSON document.
type NetworkFailure struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkFailure) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: http %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkFailure) Unwrap() error {
	return e.Err
}

func IsNetworkFailure(err error) bool {
	var nf *NetworkFailure
	return errors.As(err, &nf)
}
