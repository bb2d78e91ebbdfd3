package sqlite

import (
	"context"
	"errors"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/banshee-data/facemotion/internal/timeutil"
)

const (
	busyRetries = 5
	busyBackoff = 50 * time.Millisecond
)

// retryOnBusy runs fn again while SQLite reports the database as busy or
// locked, backing off linearly between attempts.
func retryOnBusy(ctx context.Context, clock timeutil.Clock, fn func() error) error {
	return retryWhile(ctx, clock, isBusy, fn)
}

func retryWhile(ctx context.Context, clock timeutil.Clock, retryable func(error) bool, fn func() error) error {
	var err error
	for attempt := 1; attempt <= busyRetries; attempt++ {
		err = fn()
		if err == nil || !retryable(err) || attempt == busyRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(time.Duration(attempt) * busyBackoff):
		}
	}
	return err
}

func isBusy(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
