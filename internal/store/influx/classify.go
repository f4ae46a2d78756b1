package influx

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"fedquery/internal/domain"
)

// Classify maps a failure onto the retry taxonomy. Network failures and
// timeouts are transient; a query the server parsed and rejected is
// permanent.
func Classify(err error) domain.ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return domain.ErrorTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.ErrorTransient
	}

	// Server-side errors arrive as bare message strings over HTTP. Timeout
	// and overload messages are worth retrying, parse and auth errors are not.
	msg := err.Error()
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "unavailable") {
		return domain.ErrorTransient
	}
	return domain.ErrorPermanent
}
