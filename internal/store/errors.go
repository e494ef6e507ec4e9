package store

import (
	"errors"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is the on-disk format of stored timestamps: fixed width with
// nanoseconds, always UTC, so text comparison in SQL is chronological and a
// value reads back equal to what was written.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime also accepts rows written before nanoseconds were stored.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// IsUniqueViolation reports whether err comes from a UNIQUE or PRIMARY KEY
// constraint, e.g. a duplicate location name or thread id.
func IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// IsConstraintViolation reports whether err is any storage-level integrity
// error (NOT NULL, UNIQUE, CHECK, FOREIGN KEY).
func IsConstraintViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
