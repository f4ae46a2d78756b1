package mysql

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"

	gomysql "github.com/go-sql-driver/mysql"

	"fedquery/internal/domain"
)

// Transient server error numbers: connection pressure, lock timeouts,
// deadlocks, shutdown in progress. Every other server-reported error is
// permanent.
var transientErrnos = map[uint16]bool{
	1040: true, // ER_CON_COUNT_ERROR
	1053: true, // ER_SERVER_SHUTDOWN
	1205: true, // ER_LOCK_WAIT_TIMEOUT
	1213: true, // ER_LOCK_DEADLOCK
}

// Classify maps a driver failure onto the retry taxonomy. Network failures
// and attempt timeouts are transient; anything the server rejected outright
// (syntax, auth, unknown objects) is permanent.
func Classify(err error) domain.ErrorKind {
	var serverErr *gomysql.MySQLError
	if errors.As(err, &serverErr) {
		if transientErrnos[serverErr.Number] {
			return domain.ErrorTransient
		}
		return domain.ErrorPermanent
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, gomysql.ErrInvalidConn),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return domain.ErrorTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.ErrorTransient
	}
	return domain.ErrorPermanent
}
