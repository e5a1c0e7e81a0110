//go:build !libsql

package servecmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/papercomputeco/missioncontrol/pkg/storage"
	"github.com/papercomputeco/missioncontrol/pkg/storage/sqlite"
)

func (c *serveCommander) openSQLite(ctx context.Context, path string) (storage.Driver, error) {
	driver, err := sqlite.NewDriver(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
	}
	c.logger.Info("using SQLite storage", "path", path)
	return driver, nil
}

func (c *serveCommander) openLibSQL(context.Context, string, string) (storage.Driver, error) {
	return nil, errors.New("libsql storage is not available in this build; rebuild with -tags libsql")
}
