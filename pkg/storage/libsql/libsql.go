//go:build libsql

// Package libsql provides a storage driver for libSQL databases (Turso and
// other edge SQLite deployments) using ent's SQLite dialect.
//
// go-libsql links its own SQLite build, which clashes with mattn/go-sqlite3,
// so the package only compiles with the "libsql" build tag.
package libsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/tursodatabase/go-libsql" // register the libSQL driver as "libsql"

	entdriver "github.com/papercomputeco/missioncontrol/pkg/storage/ent/driver"
)

// Driver implements storage.Driver on libSQL via the ent driver.
type Driver struct {
	*entdriver.EntDriver
}

// NewDriver opens a libSQL database. dbURL is either a remote URL
// ("libsql://db-org.turso.io") or a local "file:" URL. A non-empty
// authToken is attached to remote URLs.
func NewDriver(ctx context.Context, dbURL, authToken string) (*Driver, error) {
	dsn, err := DSN(dbURL, authToken)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Pragmas are per connection; pin one so the migrator sees foreign keys on.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	ed, err := entdriver.New(ctx, entsql.OpenDB(dialect.SQLite, db))
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Driver{EntDriver: ed}, nil
}

// DSN builds the libSQL connection string for dbURL.
func DSN(dbURL, authToken string) (string, error) {
	if dbURL == "" {
		return "", errors.New("libsql url is required")
	}

	u, err := url.Parse(dbURL)
	if err != nil {
		return "", fmt.Errorf("invalid libsql url: %w", err)
	}

	switch u.Scheme {
	case "file":
		return dbURL, nil
	case "libsql", "https", "http", "wss", "ws":
		if authToken != "" {
			q := u.Query()
			q.Set("authToken", authToken)
			u.RawQuery = q.Encode()
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf("unsupported libsql url scheme: %q", u.Scheme)
	}
}
