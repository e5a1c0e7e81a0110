//go:build libsql

package servecmder

import (
	"context"
	"fmt"

	"github.com/papercomputeco/missioncontrol/pkg/storage"
	"github.com/papercomputeco/missioncontrol/pkg/storage/libsql"
)

// openSQLite opens a local database file through libSQL, which replaces
// mattn/go-sqlite3 in libsql builds.
func (c *serveCommander) openSQLite(ctx context.Context, path string) (storage.Driver, error) {
	return c.openLibSQL(ctx, "file:"+path, "")
}

func (c *serveCommander) openLibSQL(ctx context.Context, url, authToken string) (storage.Driver, error) {
	driver, err := libsql.NewDriver(ctx, url, authToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create libSQL driver: %w", err)
	}
	c.logger.Info("using libSQL storage", "url", url)
	return driver, nil
}
