package database

import (
	"strconv"
	"time"
)

const (
	defaultMaxOpenConns    = 1
	defaultMaxIdleConns    = 1
	defaultConnMaxLifetime = time.Hour
	defaultJournalMode     = "WAL"
	defaultSynchronous     = "NORMAL"
)

// Config describes how the state database is opened. Zero values fall back
// to the defaults above.
type Config struct {
	DBPath string

	// The dedupe store has a single writer, so one connection is enough.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	JournalMode   string
	Synchronous   string
	BusyTimeoutMS int
	CacheSizeKB   int
}

// NewConfig returns the settings used for the seen-URL database at dbPath.
func NewConfig(dbPath string) *Config {
	return &Config{
		DBPath:          dbPath,
		ConnMaxLifetime: defaultConnMaxLifetime,
		JournalMode:     defaultJournalMode,
		Synchronous:     defaultSynchronous,
		BusyTimeoutMS:   5000,
		CacheSizeKB:     -8000,
	}
}

// dsn renders the go-sqlite3 connection string.
func (c *Config) dsn() string {
	return "file:" + c.DBPath +
		"?_journal=" + c.JournalMode +
		"&_synchronous=" + c.Synchronous +
		"&_busy_timeout=" + strconv.Itoa(c.BusyTimeoutMS)
}
