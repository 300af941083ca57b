package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/joinix/joinix/internal/pkg/resilience"
)

// ErrCapacityReached is returned by AddParticipant when the event has no free place.
var ErrCapacityReached = errors.New("event capacity reached")

// classify maps driver failures onto resilience kinds so the executor can
// decide on retries without looking at error text.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var ce *resilience.Error
	if errors.As(err, &ce) || errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return resilience.Wrap(resilience.KindNotFound, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return resilience.Wrap(sqlStateKind(pgErr.Code), op, err)
	}

	if pgconn.Timeout(err) {
		return resilience.Wrap(resilience.KindTimeout, op, err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return resilience.Wrap(resilience.KindNetwork, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return resilience.Wrap(resilience.KindTimeout, op, err)
		}
		return resilience.Wrap(resilience.KindNetwork, op, err)
	}
	if pgconn.SafeToRetry(err) {
		return resilience.Wrap(resilience.KindNetwork, op, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

// sqlStateKind classifies a SQLSTATE code.
func sqlStateKind(code string) resilience.Kind {
	switch code {
	case "23505": // unique_violation
		return resilience.KindConflict
	case "42501": // insufficient_privilege
		return resilience.KindAuth
	case "40001", "40P01", "53300", "57P01", "57P02", "57P03":
		// serialization failure, deadlock, too many connections, server shutdown
		return resilience.KindNetwork
	case "57014": // query_canceled (statement_timeout)
		return resilience.KindTimeout
	case "P0002": // no_data_found
		return resilience.KindNotFound
	}

	switch {
	case strings.HasPrefix(code, "08"): // connection exception
		return resilience.KindNetwork
	case strings.HasPrefix(code, "22"), strings.HasPrefix(code, "23"), code == "P0001":
		return resilience.KindValidation
	case strings.HasPrefix(code, "28"): // invalid authorization
		return resilience.KindAuth
	}
	return resilience.KindUnknown
}
