package repository

import "github.com/okian/pulse/pkg/logger"

// Option configures a SQLiteJournal.
type Option func(*SQLiteJournal)

// WithLogger sets the logger used while opening and loading the journal.
func WithLogger(l logger.Logger) Option {
	return func(j *SQLiteJournal) {
		if l != nil {
			j.log = l
		}
	}
}

// WithBusyTimeout sets how long SQLite waits on a locked database, in milliseconds.
func WithBusyTimeout(ms int) Option {
	return func(j *SQLiteJournal) {
		if ms > 0 {
			j.busyTimeoutMs = ms
		}
	}
}
